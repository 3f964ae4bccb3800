package request_test

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/request"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func requestedWith(items ...request.Item) *request.Request {
	return &request.Request{
		ID:            "REQ-1",
		RequesterName: "alice@company.com",
		Status:        request.StatusRequested,
		Items:         items,
		Version:       1,
	}
}

func pendingItem(id string) request.Item {
	return request.Item{
		ID:            id,
		ItemName:      "Monitor " + id,
		Quantity:      2,
		Justification: "Replacement for broken screens",
		SupplierName:  "Screens Inc",
		EstimatedCost: decimal.RequireFromString("199.90"),
		Priority:      request.PriorityMedium,
		ItemStatus:    request.ItemStatusPending,
	}
}

func priceDTO() request.ProcessItemDTO {
	return request.ProcessItemDTO{
		ItemStatus:    request.ItemStatusPriced,
		ActualCost:    dec("180.00"),
		CostProof:     "https://screens.example/quote/1",
		CostProofType: request.CostProofLink,
	}
}

func rejectDTO() request.ProcessItemDTO {
	return request.ProcessItemDTO{ItemStatus: request.ItemStatusRejected, RejectionReason: "Not needed"}
}

func errType(err error) internal.ErrorType {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return ""
	}
	return appErr.Type
}

var _ = Describe("Item processing", func() {
	var req *request.Request

	BeforeEach(func() {
		req = requestedWith(pendingItem("a"), pendingItem("b"))
	})

	It("prices an item and leaves its siblings alone", func() {
		Expect(req.ApplyProcessing("a", priceDTO())).To(Succeed())

		Expect(req.Items[0].ItemStatus).To(Equal(request.ItemStatusPriced))
		Expect(req.Items[0].ActualCost.String()).To(Equal("180"))
		Expect(req.Items[0].ItemName).To(Equal("Monitor a"))
		Expect(req.Items[0].EstimatedCost.String()).To(Equal("199.9"))
		Expect(req.Items[1]).To(Equal(pendingItem("b")))
	})

	It("requires a rejection reason", func() {
		err := req.ApplyProcessing("a", request.ProcessItemDTO{ItemStatus: request.ItemStatusRejected, RejectionReason: "   "})
		Expect(errType(err)).To(Equal(internal.ErrorTypeValidation))
		Expect(req.Items[0].ItemStatus).To(Equal(request.ItemStatusPending))
	})

	It("requires cost, proof and proof type together when pricing", func() {
		noCost := priceDTO()
		noCost.ActualCost = dec("0")
		noProof := priceDTO()
		noProof.CostProof = ""
		noType := priceDTO()
		noType.CostProofType = ""

		for _, dto := range []request.ProcessItemDTO{noCost, noProof, noType} {
			Expect(errType(req.ApplyProcessing("a", dto))).To(Equal(internal.ErrorTypeValidation))
		}
	})

	It("clears price fields when an item is re-decided as rejected", func() {
		Expect(req.ApplyProcessing("a", priceDTO())).To(Succeed())
		Expect(req.ApplyProcessing("a", rejectDTO())).To(Succeed())

		item := req.Items[0]
		Expect(item.ActualCost).To(BeNil())
		Expect(item.CostProof).To(BeEmpty())
		Expect(item.RejectionReason).To(Equal("Not needed"))
		Expect(item.ProcessingConsistent()).To(BeTrue())
	})

	It("applies supplier overrides only when given", func() {
		dto := priceDTO()
		dto.SupplierName = "Cheaper Screens"
		Expect(req.ApplyProcessing("a", dto)).To(Succeed())
		Expect(req.Items[0].SupplierName).To(Equal("Cheaper Screens"))

		Expect(req.ApplyProcessing("b", priceDTO())).To(Succeed())
		Expect(req.Items[1].SupplierName).To(Equal("Screens Inc"))
	})

	It("reports unknown items as not found", func() {
		err := req.ApplyProcessing("zzz", priceDTO())
		Expect(errors.Is(err, request.ErrItemNotFound)).To(BeTrue())
	})

	It("refuses once the request left the purchaser queue", func() {
		req.Status = request.StatusWaitingForApproval
		err := req.ApplyProcessing("a", priceDTO())
		Expect(errType(err)).To(Equal(internal.ErrorTypeInvalidTransition))
	})

	It("only accepts decisions that keep the item fields consistent", func() {
		rng := rand.New(rand.NewSource(42))
		statuses := []request.ItemStatus{"", request.ItemStatusPending, request.ItemStatusPriced, request.ItemStatusRejected, "lost"}
		costs := []*decimal.Decimal{nil, dec("-5"), dec("0"), dec("0.01"), dec("1250.50")}
		texts := []string{"", "   ", "quote.pdf"}
		types := []request.CostProofType{"", "fax", request.CostProofPDF, request.CostProofImage, request.CostProofLink}

		for i := 0; i < 500; i++ {
			dto := request.ProcessItemDTO{
				ItemStatus:      statuses[rng.Intn(len(statuses))],
				ActualCost:      costs[rng.Intn(len(costs))],
				CostProof:       texts[rng.Intn(len(texts))],
				CostProofType:   types[rng.Intn(len(types))],
				RejectionReason: texts[rng.Intn(len(texts))],
			}

			var acceptable bool
			switch dto.ItemStatus {
			case request.ItemStatusPending:
				acceptable = true
			case request.ItemStatusRejected:
				acceptable = strings.TrimSpace(dto.RejectionReason) != ""
			case request.ItemStatusPriced:
				acceptable = dto.ActualCost != nil && dto.ActualCost.IsPositive() &&
					strings.TrimSpace(dto.CostProof) != "" &&
					(dto.CostProofType == request.CostProofPDF || dto.CostProofType == request.CostProofImage || dto.CostProofType == request.CostProofLink)
			}

			target := requestedWith(pendingItem("a"))
			err := target.ApplyProcessing("a", dto)
			if acceptable {
				Expect(err).NotTo(HaveOccurred(), "dto %+v", dto)
				Expect(target.Items[0].ProcessingConsistent()).To(BeTrue(), "dto %+v", dto)
			} else {
				Expect(errType(err)).To(Equal(internal.ErrorTypeValidation), "dto %+v", dto)
				Expect(target.Items[0]).To(Equal(pendingItem("a")))
			}
		}
	})
})

var _ = Describe("Submitting for approval", func() {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	It("fails while one item is pending and succeeds once the last one is decided", func() {
		req := requestedWith(pendingItem("a"), pendingItem("b"))
		Expect(req.ApplyProcessing("a", priceDTO())).To(Succeed())

		err := req.SubmitForApproval("buyer@company.com", now)
		Expect(err).To(MatchError(ContainSubstring("1 items still need to be processed")))
		Expect(req.Status).To(Equal(request.StatusRequested))

		Expect(req.ApplyProcessing("b", rejectDTO())).To(Succeed())
		Expect(req.SubmitForApproval("buyer@company.com", now)).To(Succeed())

		Expect(req.Status).To(Equal(request.StatusWaitingForApproval))
		Expect(req.ProcessedBy).To(Equal("buyer@company.com"))
		Expect(*req.ProcessedDate).To(Equal(now))
		Expect(req.Items[0].ApprovalStatus).To(Equal(request.ApprovalPending))
		Expect(req.Items[1].ApprovalStatus).To(BeEmpty())
	})
})

var _ = Describe("Item approval", func() {
	var req *request.Request
	now := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		req = requestedWith(pendingItem("a"), pendingItem("b"), pendingItem("c"), pendingItem("d"))
		Expect(req.ApplyProcessing("a", priceDTO())).To(Succeed())
		Expect(req.ApplyProcessing("b", priceDTO())).To(Succeed())
		Expect(req.ApplyProcessing("c", priceDTO())).To(Succeed())
		Expect(req.ApplyProcessing("d", rejectDTO())).To(Succeed())
		Expect(req.SubmitForApproval("buyer@company.com", now)).To(Succeed())
	})

	approve := request.ApproveItemDTO{ApprovalStatus: request.ApprovalApproved}
	reject := request.ApproveItemDTO{ApprovalStatus: request.ApprovalRejected, CEORejectionReason: "Over budget"}

	It("stamps the actor and time by default", func() {
		Expect(req.ApplyApproval("a", approve, "ceo@company.com", now)).To(Succeed())
		Expect(req.Items[0].ApprovedBy).To(Equal("ceo@company.com"))
		Expect(*req.Items[0].ApprovedDate).To(Equal(now))
	})

	It("is idempotent for repeated decisions", func() {
		Expect(req.ApplyApproval("a", reject, "ceo@company.com", now)).To(Succeed())
		first := req.Items[0]

		Expect(req.ApplyApproval("a", reject, "ceo@company.com", now.Add(time.Hour))).To(Succeed())
		Expect(req.Items[0]).To(Equal(first))
	})

	It("requires a reason to reject", func() {
		err := req.ApplyApproval("a", request.ApproveItemDTO{ApprovalStatus: request.ApprovalRejected}, "ceo@company.com", now)
		Expect(errType(err)).To(Equal(internal.ErrorTypeValidation))
	})

	It("rejects unknown approval statuses", func() {
		err := req.ApplyApproval("a", request.ApproveItemDTO{ApprovalStatus: "maybe"}, "ceo@company.com", now)
		Expect(errType(err)).To(Equal(internal.ErrorTypeValidation))
	})

	It("does not review items the purchaser rejected", func() {
		err := req.ApplyApproval("d", approve, "ceo@company.com", now)
		Expect(errType(err)).To(Equal(internal.ErrorTypeInvalidTransition))
	})

	It("ignores purchaser-rejected items when deciding completeness", func() {
		Expect(req.CanCompleteReview()).To(BeFalse())
		Expect(req.ApplyApproval("a", approve, "ceo@company.com", now)).To(Succeed())
		Expect(req.ApplyApproval("b", approve, "ceo@company.com", now)).To(Succeed())
		Expect(req.CanCompleteReview()).To(BeFalse())
		Expect(req.ApplyApproval("c", approve, "ceo@company.com", now)).To(Succeed())
		Expect(req.CanCompleteReview()).To(BeTrue())
	})

	DescribeTable("final status",
		func(decisions []request.ApproveItemDTO, expected request.Status) {
			for i, d := range decisions {
				Expect(req.ApplyApproval([]string{"a", "b", "c"}[i], d, "ceo@company.com", now)).To(Succeed())
			}
			Expect(req.CompleteReview("ceo@company.com", now)).To(Succeed())
			Expect(req.Status).To(Equal(expected))
			Expect(req.ApprovalCompletedBy).To(Equal("ceo@company.com"))
		},
		Entry("mixed", []request.ApproveItemDTO{approve, approve, reject}, request.StatusProcessed),
		Entry("all approved", []request.ApproveItemDTO{approve, approve, approve}, request.StatusApprovalCompleted),
		Entry("all rejected", []request.ApproveItemDTO{reject, reject, reject}, request.StatusRejected),
	)

	It("cannot complete while items are unreviewed", func() {
		Expect(req.ApplyApproval("a", approve, "ceo@company.com", now)).To(Succeed())
		err := req.CompleteReview("ceo@company.com", now)
		Expect(err).To(MatchError(ContainSubstring("2 items still need to be reviewed")))
		Expect(req.Status).To(Equal(request.StatusWaitingForApproval))
	})

	It("treats a request without approvable items as rejected", func() {
		only := requestedWith(pendingItem("x"))
		Expect(only.ApplyProcessing("x", rejectDTO())).To(Succeed())
		Expect(only.SubmitForApproval("buyer@company.com", now)).To(Succeed())
		Expect(only.CompleteReview("ceo@company.com", now)).To(Succeed())
		Expect(only.Status).To(Equal(request.StatusRejected))
	})
})

var _ = Describe("Edit window", func() {
	It("closes as soon as the purchaser touches an item", func() {
		req := requestedWith(pendingItem("a"))
		Expect(req.IsEditable()).To(BeTrue())

		Expect(req.ApplyProcessing("a", rejectDTO())).To(Succeed())
		Expect(req.IsEditable()).To(BeFalse())
	})

	It("is closed for every later status", func() {
		for _, s := range []request.Status{request.StatusWaitingForApproval, request.StatusApprovalCompleted, request.StatusProcessed, request.StatusRejected} {
			req := requestedWith(pendingItem("a"))
			req.Status = s
			Expect(req.IsEditable()).To(BeFalse(), string(s))
		}
	})
})

var _ = Describe("Closed requests", func() {
	DescribeTable("IsTerminal",
		func(status request.Status, terminal bool) {
			Expect(status.IsTerminal()).To(Equal(terminal))
		},
		Entry("draft", request.StatusDraft, false),
		Entry("requested", request.StatusRequested, false),
		Entry("waiting for approval", request.StatusWaitingForApproval, false),
		Entry("approval completed", request.StatusApprovalCompleted, true),
		Entry("processed", request.StatusProcessed, true),
		Entry("rejected", request.StatusRejected, true),
	)

	It("says the request is closed when a transition is attempted after review", func() {
		req := requestedWith(pendingItem("a"))
		req.Status = request.StatusProcessed

		err := req.ApplyProcessing("a", priceDTO())
		Expect(errType(err)).To(Equal(internal.ErrorTypeInvalidTransition))
		appErr, _ := internal.IsAppError(err)
		Expect(appErr.Message).To(ContainSubstring("already closed as processed"))

		req.Status = request.StatusWaitingForApproval
		err = req.ApplyProcessing("a", priceDTO())
		appErr, _ = internal.IsAppError(err)
		Expect(appErr.Message).To(ContainSubstring("in status waiting_for_approval"))
	})
})
