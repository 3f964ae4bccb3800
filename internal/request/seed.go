package request

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type SeedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

func sampleItem(now time.Time, id, name string, quantity int, justification, supplier, reference, cost string, priority Priority, neededIn int) Item {
	return Item{
		ID:                id,
		ItemName:          name,
		Quantity:          quantity,
		Justification:     justification,
		SupplierName:      supplier,
		SupplierReference: reference,
		EstimatedCost:     decimal.RequireFromString(cost),
		Priority:          priority,
		NeededByDate:      now.AddDate(0, 0, neededIn).Format("2006-01-02"),
		ItemStatus:        ItemStatusPending,
	}
}

func priced(item Item, cost, proof string) Item {
	d := decimal.RequireFromString(cost)
	item.ItemStatus = ItemStatusPriced
	item.ActualCost = &d
	item.CostProof = proof
	item.CostProofType = CostProofLink
	item.ApprovalStatus = ApprovalPending
	return item
}

// SampleRequests builds one request per workflow stage. Dates are relative to now so the
// drafts stay submittable.
func SampleRequests(now time.Time, domain string) []*Request {
	if domain == "" {
		domain = "company.com"
	}
	ago := func(hours int) time.Time {
		return now.Add(-time.Duration(hours) * time.Hour)
	}
	processedAt := ago(20)
	approvedAt := ago(4)
	purchaser := "purchasing@" + domain
	ceo := "ceo@" + domain

	helmets := sampleItem(now, "item-001-1", "Industrial Safety Helmets", 25,
		"New safety equipment for construction site workers, replacement needed",
		"SafetyFirst Equipment", "SF-HELMET-001", "15.50", PriorityUrgent, 10)
	vests := sampleItem(now, "item-001-2", "High-Vis Safety Vests", 25,
		"Matching safety vests for the new helmets",
		"SafetyFirst Equipment", "SF-VEST-002", "8.75", PriorityUrgent, 10)
	multimeter := sampleItem(now, "item-002-1", "Digital Multimeter Fluke 117", 3,
		"Electrical testing equipment for the new installation project",
		"ElectroTools Pro", "FLUKE-117-DMM", "165.00", PriorityMedium, 17)
	screwdrivers := sampleItem(now, "item-002-2", "Insulated Screwdriver Set", 2,
		"Safety tools for electrical work",
		"ElectroTools Pro", "WIHA-INSUL-SET", "89.50", PriorityMedium, 17)
	tablet := sampleItem(now, "item-003-1", "Industrial Tablet PC", 2,
		"Mobile computing devices for field inspections and digital documentation",
		"TechSolutions Belgium", "RUGGED-TAB-10", "850.00", PriorityMedium, 31)
	drills := sampleItem(now, "item-004-1", "Cordless Drill Set DeWalt", 4,
		"Replacement tools for workshop, old drills are no longer functional",
		"ToolMaster Distribution", "DEWALT-DCD791-KIT", "145.00", PriorityLow, 45)
	bits := sampleItem(now, "item-004-2", "Drill Bit Set Professional", 4,
		"Matching drill bits for the new cordless drills",
		"ToolMaster Distribution", "BOSCH-BITS-PRO-SET", "32.50", PriorityLow, 45)

	approvedDrills := priced(drills, "139.00", "https://toolmaster.example/q/4471")
	approvedDrills.ApprovalStatus = ApprovalApproved
	approvedDrills.ApprovedBy = ceo
	approvedDrills.ApprovedDate = &approvedAt

	rejectedBits := bits
	rejectedBits.ItemStatus = ItemStatusRejected
	rejectedBits.RejectionReason = "Already in stock at the central warehouse"

	return []*Request{
		{
			ID:            "REQ-001",
			RequesterName: "arnaud.kivits@" + domain,
			RequestDate:   ago(2),
			Status:        StatusDraft,
			Items:         []Item{helmets, vests},
			Version:       1,
		},
		{
			ID:            "REQ-002",
			RequesterName: "alexandre.gerard@" + domain,
			RequestDate:   ago(26),
			Status:        StatusRequested,
			Items:         []Item{multimeter, screwdrivers},
			Version:       1,
		},
		{
			ID:            "REQ-003",
			RequesterName: "eric.jacques@" + domain,
			RequestDate:   ago(50),
			Status:        StatusWaitingForApproval,
			Items:         []Item{priced(tablet, "829.99", "https://techsolutions.example/quotes/RT10")},
			ProcessedBy:   purchaser,
			ProcessedDate: &processedAt,
			Version:       3,
		},
		{
			ID:                    "REQ-004",
			RequesterName:         "marc.potier@" + domain,
			RequestDate:           ago(74),
			Status:                StatusApprovalCompleted,
			Items:                 []Item{approvedDrills, rejectedBits},
			ProcessedBy:           purchaser,
			ProcessedDate:         &processedAt,
			ApprovalCompletedBy:   ceo,
			ApprovalCompletedDate: &approvedAt,
			Version:               5,
		},
	}
}

// SeedSampleData stores the sample requests, leaving existing ids alone.
func (s *Service) SeedSampleData(ctx context.Context, domain string) (*SeedResult, error) {
	result := &SeedResult{Created: []string{}, Skipped: []string{}}
	for _, req := range SampleRequests(s.now(), domain) {
		err := s.repo.Create(ctx, req)
		switch {
		case err == nil:
			result.Created = append(result.Created, req.ID)
			s.logger.InfoContext(ctx, "sample request created", "request_id", req.ID, "status", req.Status)
		case errors.Is(err, ErrRequestExists):
			result.Skipped = append(result.Skipped, req.ID)
		default:
			return result, err
		}
	}
	return result, nil
}
