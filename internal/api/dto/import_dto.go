package dto

// ExportQuery selects the download format of a contact export.
type ExportQuery struct {
	Format string `query:"format"`
}
