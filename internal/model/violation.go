package model

import "time"

type ViolationType string

const (
	ViolationTabSwitch          ViolationType = "tab_switch"
	ViolationWindowBlur         ViolationType = "window_blur"
	ViolationFullscreenExit     ViolationType = "fullscreen_exit"
	ViolationCopyPaste          ViolationType = "copy_paste"
	ViolationRightClick         ViolationType = "right_click"
	ViolationDevtoolsOpen       ViolationType = "devtools_open"
	ViolationMultipleFaces      ViolationType = "multiple_faces"
	ViolationNoFace             ViolationType = "no_face"
	ViolationUnauthorizedDevice ViolationType = "unauthorized_device"
	ViolationNetworkDisconnect  ViolationType = "network_disconnect"
)

var violationTypes = map[ViolationType]struct{}{
	ViolationTabSwitch:          {},
	ViolationWindowBlur:         {},
	ViolationFullscreenExit:     {},
	ViolationCopyPaste:          {},
	ViolationRightClick:         {},
	ViolationDevtoolsOpen:       {},
	ViolationMultipleFaces:      {},
	ViolationNoFace:             {},
	ViolationUnauthorizedDevice: {},
	ViolationNetworkDisconnect:  {},
}

func (t ViolationType) Valid() bool {
	_, ok := violationTypes[t]
	return ok
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight is the trust-score deduction for one violation of this severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// ViolationRecord is one entry of an attempt's append-only proctoring log.
type ViolationRecord struct {
	BaseModel

	AttemptID  string        `gorm:"index;type:varchar(36)" json:"attemptId"`
	Type       ViolationType `gorm:"size:40" json:"type"`
	Severity   Severity      `gorm:"size:10" json:"severity"`
	Detail     string        `gorm:"type:text" json:"detail"`
	OccurredAt time.Time     `json:"occurredAt"`
}

func (ViolationRecord) TableName() string {
	return "attempt_violations"
}

// ProctoringReport is the read model of an attempt's proctoring state.
type ProctoringReport struct {
	AttemptID  string            `json:"attemptId"`
	TrustScore int               `json:"trustScore"`
	Violations []ViolationRecord `json:"violations"`
	BySeverity map[Severity]int  `json:"bySeverity"`
}
