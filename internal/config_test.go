package internal_test

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Security: internal.SecurityConfig{
			SessionSecret:   strings.Repeat("s", 32),
			MagicLinkSecret: strings.Repeat("m", 32),
		},
		Roles: internal.RolesConfig{
			CEOEmails:          []string{"ceo@company.com"},
			PurchaserEmails:    []string{"buyer@company.com"},
			OrganizationDomain: "company.com",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	It("fills development defaults", func() {
		cfg := validConfig()
		Expect(cfg.Environment).To(Equal(internal.EnvDevelopment))
		Expect(cfg.Server.BaseURL).To(Equal("http://localhost:8080"))
		Expect(cfg.Store.Driver).To(Equal(internal.StoreDriverMemory))
		Expect(cfg.Security.MagicLinkTTL).To(Equal(15 * time.Minute))
		Expect(cfg.Uploads.MaxSize).To(BeNumerically("==", 10<<20))
		Expect(cfg.Observability.Logging.Format).To(Equal("text"))
		Expect(cfg.Validate()).To(Succeed())
	})

	It("defaults production logs to json", func() {
		cfg := &internal.Config{Environment: internal.EnvProduction}
		cfg.ApplyDefaults()
		Expect(cfg.IsProduction()).To(BeTrue())
		Expect(cfg.Observability.Logging.Format).To(Equal("json"))
	})

	It("reports every broken section at once", func() {
		cfg := validConfig()
		cfg.Security.SessionSecret = "short"
		cfg.Roles.CEOEmails = nil
		cfg.Store.Driver = "etcd"

		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("security config"))
		Expect(err.Error()).To(ContainSubstring("roles config"))
		Expect(err.Error()).To(ContainSubstring("store config"))
	})

	It("refuses reused secrets", func() {
		cfg := validConfig()
		cfg.Security.MagicLinkSecret = cfg.Security.SessionSecret
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("must differ")))
	})

	It("needs connection settings for the chosen backend", func() {
		cfg := validConfig()
		cfg.Store.Driver = internal.StoreDriverRedis
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("redis config")))

		cfg.Store.Driver = internal.StoreDriverPostgres
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("database config")))
	})

	It("requires a sender when SMTP is on", func() {
		cfg := validConfig()
		cfg.Email.SMTPHost = "smtp.company.com"
		Expect(cfg.Email.SMTPEnabled()).To(BeTrue())
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("from is required")))
	})

	It("reads plain environment variables", func() {
		GinkgoT().Setenv("APP_ENV", "development")
		GinkgoT().Setenv("CEO_EMAILS", "ceo@company.com, ")
		GinkgoT().Setenv("PURCHASER_EMAILS", "a@company.com,b@company.com")
		GinkgoT().Setenv("SMTP_PASS", "pw")
		GinkgoT().Setenv("SESSION_TTL", "2h")

		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.Roles.CEOEmails).To(Equal([]string{"ceo@company.com"}))
		Expect(cfg.Roles.PurchaserEmails).To(HaveLen(2))
		Expect(cfg.Email.SMTPPassword).To(Equal("pw"))
		Expect(cfg.Security.SessionTTL).To(Equal(2 * time.Hour))
	})
})

var _ = Describe("AppError", func() {
	It("matches sentinels through WithCause copies", func() {
		err := internal.ErrInvalidToken.WithCause(errors.New("signature mismatch"))
		Expect(err).To(MatchError(internal.ErrInvalidToken))
		Expect(internal.ErrInvalidToken.Cause).To(BeNil())
	})

	It("renders the error envelope", func() {
		status, body := internal.NewInvalidTransitionError("cannot approve", internal.ErrCodeInvalidStatus).ToHTTPResponse()
		Expect(status).To(Equal(409))
		Expect(body).To(HaveField("Error.Code", internal.ErrCodeInvalidStatus))
	})
})
