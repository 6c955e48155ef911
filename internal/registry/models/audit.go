package models

// Audit actions recorded by the registry.
const (
	AuditUploadRecipe       = "UPLOAD_RECIPE"
	AuditUploadPackage      = "UPLOAD_PACKAGE"
	AuditDeletePackage      = "DELETE_PACKAGE"
	AuditRemoveFiles        = "REMOVE_FILES"
	AuditRemovePackageFiles = "REMOVE_PACKAGE_FILES"
)

// AuditEntry is one append-only audit record. Timestamp is epoch
// milliseconds; LogID is time-based with a random suffix.
type AuditEntry struct {
	LogID     string
	Timestamp int64
	Action    string
	Username  string
	Details   string
}
