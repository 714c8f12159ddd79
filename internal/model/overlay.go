package model

// OverlayInfo is the wire representation of an overlay template.
type OverlayInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AssetRef string `json:"assetRef"`
}
