package domain

import "time"

// Segment — сегмент сценария ведущего.
type Segment string

const (
	SegmentDemo      Segment = "DEMO"
	SegmentObjection Segment = "OBJECTION"
	SegmentTrust     Segment = "TRUST"
	SegmentOffer     Segment = "OFFER"
	SegmentQA        Segment = "QA"
)

// Segments — фиксированный порядок сегментов шоу.
var Segments = []Segment{SegmentDemo, SegmentObjection, SegmentTrust, SegmentOffer, SegmentQA}

// AssetPackStatus — состояние пакета материалов.
type AssetPackStatus string

const (
	AssetPackStatusGenerating AssetPackStatus = "GENERATING"
	AssetPackStatusReady      AssetPackStatus = "READY"
	AssetPackStatusFailed     AssetPackStatus = "FAILED"
)

// PresenterScripts — тексты ведущего по сегментам.
type PresenterScripts map[Segment]string

// ModeratorPlaybook — материалы модератора чата.
type ModeratorPlaybook struct {
	PinnedComments    []string          `json:"pinned_comments"`
	QuickResponses    map[string]string `json:"quick_responses"`
	ProhibitedPhrases []string          `json:"prohibited_phrases"`
}

// AssetPack — материалы шоу для одной платформы.
type AssetPack struct {
	ID                 string            `json:"id"`
	LaunchID           string            `json:"launch_id"`
	Platform           string            `json:"platform"`
	Scripts            PresenterScripts  `json:"scripts"`
	Playbook           ModeratorPlaybook `json:"playbook"`
	Disclosure         string            `json:"disclosure"`
	ComplianceApproved bool              `json:"compliance_approved"`
	Status             AssetPackStatus   `json:"status"`
	Version            int               `json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ContentRequest — контекст генерации контента.
type ContentRequest struct {
	Product  ProductSnapshot
	Platform string
	Segments []Segment
}
