package handler

import (
	"time"

	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
)

func mapAccountBalanceToResponse(b *account.Balance) AccountBalanceResponse {
	resp := AccountBalanceResponse{
		ID:             b.ID.String(),
		OrganizationID: b.OrganizationID.String(),
		Available:      b.Available,
		TotalFunded:    b.TotalFunded,
		TotalWithdrawn: b.TotalWithdrawn,
		Currency:       b.Currency,
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
	if b.MembershipID != nil {
		resp.MembershipID = b.MembershipID.String()
	}
	return resp
}

func mapAccountTransactionToResponse(t *account.Transaction) AccountTransactionResponse {
	resp := AccountTransactionResponse{
		ID:             t.ID.String(),
		Type:           string(t.Type),
		Amount:         t.Amount,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		Status:         string(t.Status),
		Reason:         t.Reason,
		ReferenceID:    t.ReferenceID,
		ReversalReason: t.ReversalReason,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		CompletedAt:    formatTime(t.CompletedAt),
		ReversedAt:     formatTime(t.ReversedAt),
	}
	if t.RelatedCardID != nil {
		resp.RelatedCardID = t.RelatedCardID.String()
	}
	if t.RelatedCardTransactionID != nil {
		resp.RelatedCardTransactionID = t.RelatedCardTransactionID.String()
	}
	if t.InitiatedBy != nil {
		resp.InitiatedBy = t.InitiatedBy.String()
	}
	return resp
}

func mapCardToResponse(c *card.Card) CardResponse {
	blocked := c.BlockedMCCs
	if blocked == nil {
		blocked = []string{}
	}
	return CardResponse{
		ID:                 c.ID.String(),
		OrganizationID:     c.OrganizationID.String(),
		OwnerMembershipID:  c.OwnerMembershipID.String(),
		MaskedNumber:       c.MaskedNumber(),
		Status:             string(c.Status),
		AllowInternational: c.AllowInternational,
		BlockedMCCs:        blocked,
		FreezeReason:       c.FreezeReason,
		FrozenAt:           formatTime(c.FrozenAt),
		CancelledAt:        formatTime(c.CancelledAt),
		Currency:           c.Currency,
		CreatedAt:          c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          c.UpdatedAt.Format(time.RFC3339),
	}
}

func mapCardBalanceToResponse(b *card.Balance) CardBalanceResponse {
	return CardBalanceResponse{
		CardID:    b.CardID.String(),
		Available: b.Available,
		Reserved:  b.Reserved,
		Used:      b.Used,
		Currency:  b.Currency,
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
}

func mapLimitsToResponse(limits []*card.Limit) []LimitResponse {
	resp := make([]LimitResponse, 0, len(limits))
	for _, l := range limits {
		resp = append(resp, LimitResponse{
			ID:        l.ID.String(),
			Type:      string(l.Type),
			Amount:    l.Amount,
			Threshold: l.Threshold,
			IsActive:  l.IsActive,
		})
	}
	return resp
}

func mapCardTransactionToResponse(t *card.Transaction) CardTransactionResponse {
	return CardTransactionResponse{
		ID:             t.ID.String(),
		CardID:         t.CardID.String(),
		Amount:         t.Amount,
		Currency:       t.Currency,
		Merchant:       t.Merchant,
		MCC:            t.MCC,
		ReferenceID:    t.ReferenceID,
		International:  t.International,
		Status:         string(t.Status),
		CanBeDisputed:  t.CanBeDisputed,
		DisputeReason:  t.DisputeReason,
		ReversalReason: t.ReversalReason,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		CompletedAt:    formatTime(t.CompletedAt),
		ReversedAt:     formatTime(t.ReversedAt),
		DisputedAt:     formatTime(t.DisputedAt),
	}
}

// mapApprovalToResponse reports the effective status, so a lapsed request shows as EXPIRED
func mapApprovalToResponse(a *approval.Approval) ApprovalResponse {
	resp := ApprovalResponse{
		ID:              a.ID.String(),
		OrganizationID:  a.OrganizationID.String(),
		ActionType:      string(a.ActionType),
		RequestedBy:     a.RequestedBy.String(),
		RequesterRole:   string(a.RequesterRole),
		Status:          string(a.EffectiveStatus(time.Now())),
		Reason:          a.Reason,
		DecisionComment: a.DecisionComment,
		ActionData:      a.ActionData,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
		ResolvedAt:      formatTime(a.ResolvedAt),
		ExpiresAt:       a.ExpiresAt.Format(time.RFC3339),
		AppliedAt:       formatTime(a.AppliedAt),
	}
	if a.CardID != nil {
		resp.CardID = a.CardID.String()
	}
	if a.ApprovedBy != nil {
		resp.ApprovedBy = a.ApprovedBy.String()
	}
	return resp
}

func mapApprovalsToResponse(approvals []*approval.Approval) []ApprovalResponse {
	resp := make([]ApprovalResponse, 0, len(approvals))
	for _, a := range approvals {
		resp = append(resp, mapApprovalToResponse(a))
	}
	return resp
}

func mapRequirementToResponse(r approval.Requirement) ApprovalRequirementResponse {
	resp := ApprovalRequirementResponse{
		ActionType:        string(r.Action),
		ApprovalRequired:  r.Required,
		DirectRoles:       make([]string, 0, len(r.DirectRoles)),
		DeciderRole:       string(r.DeciderRole),
		Description:       r.Description,
		MaxDurationHours:  int(r.ExpiresAfter.Hours()),
		AnyRoleActsDirect: r.DirectRoles == nil,
	}
	for _, role := range r.DirectRoles {
		resp.DirectRoles = append(resp.DirectRoles, string(role))
	}
	return resp
}

func mapAuditEventToResponse(e *audit.Event) AuditEventResponse {
	resp := AuditEventResponse{
		ID:            e.ID.String(),
		Action:        string(e.Action),
		Resource:      string(e.Resource),
		ResourceID:    e.ResourceID.String(),
		Changes:       e.Changes,
		Status:        string(e.Status),
		ErrorMessage:  e.ErrorMessage,
		CorrelationID: e.CorrelationID,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.ActorMembershipID != nil {
		resp.ActorMembershipID = e.ActorMembershipID.String()
	}
	return resp
}

func mapOrganizationToResponse(o *org.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:        o.ID.String(),
		Name:      o.Name,
		Industry:  o.Industry,
		Status:    o.Status,
		CreatedAt: formatTime(&o.CreatedAt),
		UpdatedAt: formatTime(&o.UpdatedAt),
	}
}

func mapMembershipToResponse(m *org.Membership) MembershipResponse {
	return MembershipResponse{
		ID:             m.ID.String(),
		OrganizationID: m.OrganizationID.String(),
		UserID:         m.UserID.String(),
		Role:           string(m.Role),
		Status:         string(m.Status),
		CreatedAt:      formatTime(&m.CreatedAt),
		UpdatedAt:      formatTime(&m.UpdatedAt),
	}
}

func mapDepartmentToResponse(d *org.Department) DepartmentResponse {
	resp := DepartmentResponse{
		ID:             d.ID.String(),
		OrganizationID: d.OrganizationID.String(),
		Name:           d.Name,
		Budget:         d.Budget,
		Status:         string(d.Status),
		CreatedAt:      formatTime(&d.CreatedAt),
		UpdatedAt:      formatTime(&d.UpdatedAt),
	}
	if d.ManagerMembershipID != nil {
		resp.ManagerMembershipID = d.ManagerMembershipID.String()
	}
	return resp
}
