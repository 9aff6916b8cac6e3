package models

// Template is a reusable prompt preset selectable in the studio.
type Template struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	UserTemplateText string `json:"user_template_text"`
}

// Asset is a source image held in object storage.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	URI  string `json:"gcs_uri"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}
