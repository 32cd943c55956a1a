package operation

import "policybolt/internal/api/v1/dto"

type ListPoliciesInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

type ListPoliciesOutput struct {
	Body []dto.PolicyResponseDTO `json:"body"`
}

type GetPolicyInput struct {
	PolicyID string `path:"policyId" doc:"Policy ID"`
}

type GetPolicyOutput struct {
	Body dto.PolicyResponseDTO `json:"body"`
}

type ApprovePolicyInput struct {
	PolicyID string `path:"policyId" doc:"Policy ID"`
}

type ApprovePolicyOutput struct {
	Body dto.PolicyResponseDTO `json:"body"`
}

type DeletePolicyInput struct {
	PolicyID string `path:"policyId" doc:"Policy ID"`
}

type DeletePolicyOutput struct {
	// 204 No Content
}

type DownloadPolicyInput struct {
	PolicyID string `path:"policyId" doc:"Policy ID"`
}

type DownloadPolicyOutput struct {
	Body dto.DownloadURLResponseDTO `json:"body"`
}

// ReceiveGeneratedPolicyInput is authenticated by the shared webhook secret.
type ReceiveGeneratedPolicyInput struct {
	Body dto.GeneratedPolicyDTO `json:"body"`
}

type ReceiveGeneratedPolicyOutput struct {
	Body dto.PolicyResponseDTO `json:"body"`
}
