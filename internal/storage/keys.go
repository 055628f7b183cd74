package storage

import "path"

// Artifact names under an instance prefix.
const (
	ArtifactFilledDocx = "filled.docx"
	ArtifactFilledPdf  = "filled.pdf"
	ArtifactSignedPdf  = "signed.pdf"
)

// TemplateKey is where the uploaded template document lives.
func TemplateKey(customerID, templateID string) string {
	return path.Join("templates", customerID, templateID, "original.docx")
}

// InstanceKey is where an instance artifact lives:
// templates/{customerId}/{templateId}/filled/{instanceId}/{artifact}.
func InstanceKey(customerID, templateID, instanceID, artifact string) string {
	return path.Join("templates", customerID, templateID, "filled", instanceID, artifact)
}
