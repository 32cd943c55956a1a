package handler

import (
	"context"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/service"

	"github.com/rs/zerolog"
)

type PolicyHandler struct {
	policyService service.PolicyService
	logger        zerolog.Logger
}

func NewPolicyHandler(policyService service.PolicyService, logger zerolog.Logger) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
		logger:        logger,
	}
}

func (h *PolicyHandler) ListPolicies(ctx context.Context, input *operation.ListPoliciesInput) (*operation.ListPoliciesOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := h.policyService.ListForProject(ctx, userID, input.ProjectID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to list policies")
	}
	body := make([]dto.PolicyResponseDTO, 0, len(policies))
	for i := range policies {
		body = append(body, dto.NewPolicyResponse(&policies[i]))
	}
	return &operation.ListPoliciesOutput{Body: body}, nil
}

func (h *PolicyHandler) GetPolicy(ctx context.Context, input *operation.GetPolicyInput) (*operation.GetPolicyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.policyService.Get(ctx, userID, input.PolicyID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to get policy")
	}
	return &operation.GetPolicyOutput{Body: dto.NewPolicyResponse(p)}, nil
}

// ApprovePolicy makes the policy the project's active one.
func (h *PolicyHandler) ApprovePolicy(ctx context.Context, input *operation.ApprovePolicyInput) (*operation.ApprovePolicyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.policyService.Approve(ctx, userID, input.PolicyID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to approve policy")
	}
	return &operation.ApprovePolicyOutput{Body: dto.NewPolicyResponse(p)}, nil
}

func (h *PolicyHandler) DeletePolicy(ctx context.Context, input *operation.DeletePolicyInput) (*operation.DeletePolicyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.policyService.Delete(ctx, userID, input.PolicyID); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to delete policy")
	}
	return &operation.DeletePolicyOutput{}, nil
}

func (h *PolicyHandler) DownloadPolicy(ctx context.Context, input *operation.DownloadPolicyInput) (*operation.DownloadPolicyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	url, err := h.policyService.DownloadURL(ctx, userID, input.PolicyID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to create download URL")
	}
	return &operation.DownloadPolicyOutput{Body: dto.DownloadURLResponseDTO{URL: url}}, nil
}

// ReceiveGeneratedPolicy is called by the n8n workflow. The route sits behind
// the webhook secret middleware, so there is no user in the context.
func (h *PolicyHandler) ReceiveGeneratedPolicy(ctx context.Context, input *operation.ReceiveGeneratedPolicyInput) (*operation.ReceiveGeneratedPolicyOutput, error) {
	p, err := h.policyService.ReceiveGenerated(ctx, service.GeneratedPolicy{
		ProjectID: input.Body.ProjectID,
		Title:     input.Body.Title,
		Content:   input.Body.Content,
		Version:   input.Body.Version,
	})
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to store generated policy")
	}
	return &operation.ReceiveGeneratedPolicyOutput{Body: dto.NewPolicyResponse(p)}, nil
}
