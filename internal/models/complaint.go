package models

import (
	"fmt"
	"time"
)

// ComplaintStatus describes the life-cycle state of a complaint in the workflow.
type ComplaintStatus string

const (
	StatusNew                    ComplaintStatus = "new"
	StatusInProgress             ComplaintStatus = "in_progress"
	StatusWaitingInstallerDate   ComplaintStatus = "waiting_installer_date"
	StatusNeedsPlanning          ComplaintStatus = "needs_planning"
	StatusInstallerNotPlanned    ComplaintStatus = "installer_not_planned"
	StatusInstallationPlanned    ComplaintStatus = "installation_planned"
	StatusShippingPlanned        ComplaintStatus = "shipping_planned"
	StatusBothPlanned            ComplaintStatus = "both_planned"
	StatusInProduction           ComplaintStatus = "in_production"
	StatusOnWarehouse            ComplaintStatus = "on_warehouse"
	StatusShippingOverdue        ComplaintStatus = "shipping_overdue"
	StatusSent                   ComplaintStatus = "sent"
	StatusFactoryResponseOverdue ComplaintStatus = "factory_response_overdue"
	StatusFactoryApproved        ComplaintStatus = "factory_approved"
	StatusFactoryRejected        ComplaintStatus = "factory_rejected"
	StatusFactoryDispute         ComplaintStatus = "factory_dispute"
	StatusSMResponseOverdue      ComplaintStatus = "sm_response_overdue"
	StatusUnderSMReview          ComplaintStatus = "under_sm_review"
	StatusCompleted              ComplaintStatus = "completed"
	StatusResolved               ComplaintStatus = "resolved"
	StatusClosed                 ComplaintStatus = "closed"
	StatusRejected               ComplaintStatus = "rejected"
)

// AllStatuses lists every status the workflow can produce.
var AllStatuses = []ComplaintStatus{
	StatusNew, StatusInProgress, StatusWaitingInstallerDate, StatusNeedsPlanning,
	StatusInstallerNotPlanned, StatusInstallationPlanned, StatusShippingPlanned,
	StatusBothPlanned, StatusInProduction, StatusOnWarehouse, StatusShippingOverdue,
	StatusSent, StatusFactoryResponseOverdue, StatusFactoryApproved,
	StatusFactoryRejected, StatusFactoryDispute, StatusSMResponseOverdue,
	StatusUnderSMReview, StatusCompleted, StatusResolved, StatusClosed, StatusRejected,
}

// TerminalStatuses never transition again.
var TerminalStatuses = []ComplaintStatus{
	StatusCompleted, StatusResolved, StatusClosed, StatusRejected,
}

// IsTerminal reports whether s allows no further transitions.
func (s ComplaintStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the enumerated statuses.
func (s ComplaintStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ComplaintType selects the fulfillment branch chosen by the service manager.
type ComplaintType string

const (
	TypeUnset     ComplaintType = ""
	TypeManager   ComplaintType = "manager"
	TypeInstaller ComplaintType = "installer"
	TypeFactory   ComplaintType = "factory"
)

// Complaint is the central workflow entity. It is mutated only through
// ComplaintService transition methods and never hard-deleted.
type Complaint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	InitiatorID uint  `gorm:"index" json:"initiatorId"`
	Initiator   *User `gorm:"foreignKey:InitiatorID" json:"initiator,omitempty"`
	RecipientID uint  `gorm:"index" json:"recipientId"`
	Recipient   *User `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	ManagerID   *uint `gorm:"index" json:"managerId"`
	Manager     *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`

	InstallerAssignedID *uint      `gorm:"index" json:"installerAssignedId"`
	InstallerAssigned   *User      `gorm:"foreignKey:InstallerAssignedID" json:"installerAssigned,omitempty"`
	InstallerAssignedAt *time.Time `json:"installerAssignedAt"`

	OrderNumber        string `gorm:"size:100;index" json:"orderNumber"`
	ClientName         string `gorm:"size:255" json:"clientName"`
	Address            string `json:"address"`
	ContactPerson      string `gorm:"size:255" json:"contactPerson"`
	ContactPhone       string `gorm:"size:20" json:"contactPhone"`
	ProblemDescription string `json:"problemDescription"`

	DocumentPackageLink string `json:"documentPackageLink"`
	AdditionalInfo      string `json:"additionalInfo"`
	AssigneeComment     string `json:"assigneeComment"`

	ProductionSiteID *uint            `gorm:"index" json:"productionSiteId"`
	ProductionSite   *ProductionSite  `gorm:"foreignKey:ProductionSiteID" json:"productionSite,omitempty"`
	ReasonID         *uint            `gorm:"index" json:"reasonId"`
	Reason           *ComplaintReason `gorm:"foreignKey:ReasonID" json:"reason,omitempty"`

	ComplaintType ComplaintType   `gorm:"size:20;index" json:"complaintType"`
	Status        ComplaintStatus `gorm:"size:30;index;default:new" json:"status"`

	PlannedInstallationDate   *time.Time `json:"plannedInstallationDate"`
	PlannedShippingDate       *time.Time `json:"plannedShippingDate"`
	ProductionDeadline        *time.Time `json:"productionDeadline"`
	FactoryResponseDate       *time.Time `json:"factoryResponseDate"`
	ClientAgreementDate       *time.Time `json:"clientAgreementDate"`
	CompletionDate            *time.Time `json:"completionDate"`
	AddedToShippingRegistryAt *time.Time `json:"addedToShippingRegistryAt"`

	FactoryRejectReason string `json:"factoryRejectReason"`
	DisputeArguments    string `json:"disputeArguments"`

	// Optimistic concurrency token, bumped on every transition.
	LockVersion int64 `gorm:"default:0" json:"-"`

	DefectiveProducts []DefectiveProduct `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"defectiveProducts,omitempty"`
	Attachments       []Attachment       `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
	Comments          []Comment          `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	ShippingEntry     *ShippingEntry     `gorm:"foreignKey:ComplaintID" json:"shippingEntry,omitempty"`
}

// Ref is the short human-readable handle used in notifications and comments.
func (c *Complaint) Ref() string {
	return fmt.Sprintf("#%d", c.ID)
}

// DefectiveProduct is one faulty item on a complaint, ordered by Position.
type DefectiveProduct struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	ComplaintID        uint   `gorm:"index" json:"complaintId"`
	ProductName        string `gorm:"size:255" json:"productName"`
	Size               string `gorm:"size:100" json:"size"`
	OpeningType        string `gorm:"size:100" json:"openingType"`
	ProblemDescription string `json:"problemDescription"`
	Position           int    `gorm:"default:0" json:"position"`
}

// AttachmentType tags what kind of file was uploaded.
type AttachmentType string

const (
	AttachmentPhoto           AttachmentType = "photo"
	AttachmentVideo           AttachmentType = "video"
	AttachmentDocument        AttachmentType = "document"
	AttachmentCommercialOffer AttachmentType = "commercial_offer"
)

// AttachmentTypeForFilename infers the attachment tag from a file extension.
func AttachmentTypeForFilename(name string) AttachmentType {
	ext := ""
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			ext = name[i+1:]
			break
		}
	}
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp", "JPG", "JPEG", "PNG", "GIF", "WEBP":
		return AttachmentPhoto
	case "mp4", "avi", "mov", "wmv", "flv", "MP4", "AVI", "MOV", "WMV", "FLV":
		return AttachmentVideo
	default:
		return AttachmentDocument
	}
}

// Attachment stores file metadata; the blob itself lives in external storage.
type Attachment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ComplaintID    uint           `gorm:"index" json:"complaintId"`
	FilePath       string         `gorm:"size:512" json:"filePath"`
	AttachmentType AttachmentType `gorm:"size:20" json:"attachmentType"`
	Description    string         `gorm:"size:255" json:"description"`
	UploadedAt     time.Time      `gorm:"autoCreateTime" json:"uploadedAt"`
}

// Comment is the append-only audit trail on a complaint.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"index" json:"complaintId"`
	AuthorID    uint      `json:"authorId"`
	Author      *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}
