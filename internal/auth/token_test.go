package auth_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSecret   = "session-secret-session-secret-123456"
	testMagicLinkSecret = "magic-link-secret-magic-link-secret-1"
)

func newTokenService() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		MagicLinkSecret: testMagicLinkSecret,
		SessionSecret:   testSessionSecret,
	})
}

// tamperings flips one character at a time, skipping separators and the last character of each
// segment, whose low bits are base64 padding.
func tamperings(token string) []string {
	var out []string
	for i := 0; i < len(token)-1; i++ {
		if token[i] == '.' || token[i+1] == '.' {
			continue
		}
		replacement := byte('a')
		if token[i] == 'a' {
			replacement = 'b'
		}
		out = append(out, token[:i]+string(replacement)+token[i+1:])
	}
	return out
}

var _ = Describe("TokenService", func() {
	var (
		tokens *auth.TokenService
		user   *identity.User
	)

	BeforeEach(func() {
		tokens = newTokenService()
		user = &identity.User{
			ID:    "user_1700000000000_abc123def",
			Email: "buyer@company.com",
			Role:  identity.RolePurchaser,
			Name:  "buyer",
		}
	})

	Describe("session tokens", func() {
		It("round-trips the identity", func() {
			token, err := tokens.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			got, err := tokens.VerifySession(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(user))
		})

		It("embeds an 8 hour expiry and the session type", func() {
			token, err := tokens.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			claims := &auth.SessionClaims{}
			_, _, err = jwt.NewParser().ParseUnverified(token, claims)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Type).To(Equal(auth.TokenTypeSession))
			Expect(claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)).To(Equal(8 * time.Hour))
		})

		It("rejects every single-character tampering without panicking", func() {
			token, err := tokens.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			for _, forged := range tamperings(token) {
				got, err := tokens.VerifySession(forged)
				Expect(err).To(MatchError(auth.ErrInvalidToken))
				Expect(got).To(BeNil())
			}
		})

		It("rejects expired sessions", func() {
			past := tokens.WithClock(func() time.Time { return time.Now().Add(-9 * time.Hour) })
			token, err := past.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects tokens signed with another key", func() {
			other := auth.NewTokenService(auth.TokenConfig{
				MagicLinkSecret: testMagicLinkSecret,
				SessionSecret:   "a-completely-different-session-secret",
			})
			token, err := other.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects unknown roles", func() {
			claims := &auth.SessionClaims{
				UserID: "u1", Email: "x@company.com", Role: "admin", Type: auth.TokenTypeSession,
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects the none algorithm", func() {
			claims := &auth.SessionClaims{
				UserID: "u1", Email: "x@company.com", Role: "ceo", Type: auth.TokenTypeSession,
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("rejects tokens without an expiry", func() {
			claims := &auth.SessionClaims{UserID: "u1", Email: "x@company.com", Role: "ceo", Type: auth.TokenTypeSession}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		DescribeTable("malformed input",
			func(token string) {
				got, err := tokens.VerifySession(token)
				Expect(err).To(MatchError(auth.ErrInvalidToken))
				Expect(got).To(BeNil())
			},
			Entry("empty", ""),
			Entry("garbage", "not-a-token"),
			Entry("three empty segments", ".."),
			Entry("bad base64", "%%%.%%%.%%%"),
		)
	})

	Describe("magic-link tokens", func() {
		It("round-trips the normalized email", func() {
			token, err := tokens.IssueMagicLink(" Buyer@Company.com ")
			Expect(err).NotTo(HaveOccurred())

			email, err := tokens.VerifyMagicLink(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(email).To(Equal("buyer@company.com"))
		})

		It("fails once exp is in the past even with a valid signature", func() {
			past := tokens.WithClock(func() time.Time { return time.Now().Add(-16 * time.Minute) })
			token, err := past.IssueMagicLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())

			email, err := tokens.VerifyMagicLink(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			Expect(email).To(BeEmpty())
		})

		It("rejects tampering", func() {
			token, err := tokens.IssueMagicLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())

			for _, forged := range tamperings(token) {
				_, err := tokens.VerifyMagicLink(forged)
				Expect(err).To(MatchError(auth.ErrInvalidToken))
			}
		})
	})

	Describe("cross-use", func() {
		It("never accepts a magic link as a session or a session as a magic link", func() {
			link, err := tokens.IssueMagicLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())
			session, err := tokens.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.VerifySession(link)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			_, err = tokens.VerifyMagicLink(session)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("still separates the kinds when both keys are the same", func() {
			shared := strings.Repeat("k", 40)
			same := auth.NewTokenService(auth.TokenConfig{MagicLinkSecret: shared, SessionSecret: shared})

			link, err := same.IssueMagicLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())
			session, err := same.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			_, err = same.VerifySession(link)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			_, err = same.VerifyMagicLink(session)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})
	})
})
