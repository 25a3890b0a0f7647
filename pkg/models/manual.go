package models

// ManualSummary is one entry of the manuals registry (data/manuals/registry.json)
type ManualSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Version     string `json:"version,omitempty"`
	LicenseName string `json:"licenseName,omitempty"`
	LicenseURL  string `json:"licenseUrl,omitempty"`
	Locale      string `json:"locale,omitempty"`
	Slug        string `json:"slug,omitempty"`
}

// ManualSearchResult is a single hit of the in-manual text search
type ManualSearchResult struct {
	NodeID  string `json:"nodeId"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
