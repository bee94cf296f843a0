package models

import "time"

// DeliveryStatus tracks the physical delivery of a shipping entry.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// OrderType distinguishes complaint-derived entries from standalone shipments.
type OrderType string

const (
	OrderTypeComplaint  OrderType = "complaint"
	OrderTypeStandalone OrderType = "standalone"
)

// LiftType says whose crew carries the doors up.
type LiftType string

const (
	LiftOur    LiftType = "our"
	LiftClient LiftType = "client"
)

// ShippingEntry is a snapshot of shipment-relevant complaint fields plus
// delivery tracking. One complaint has at most one entry; standalone entries
// have no complaint at all.
type ShippingEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ComplaintID *uint      `gorm:"uniqueIndex" json:"complaintId"`
	Complaint   *Complaint `gorm:"foreignKey:ComplaintID" json:"-"`
	OrderType   OrderType  `gorm:"size:20;index;default:standalone" json:"orderType"`

	OrderNumber   string `gorm:"size:100;index" json:"orderNumber"`
	ClientName    string `gorm:"size:255" json:"clientName"`
	Address       string `json:"address"`
	ContactPerson string `gorm:"size:255" json:"contactPerson"`
	ContactPhone  string `gorm:"size:20" json:"contactPhone"`
	ManagerID     *uint  `gorm:"index" json:"managerId"`
	Manager       *User  `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`

	DoorsCount          int      `gorm:"default:1" json:"doorsCount"`
	LiftType            LiftType `gorm:"size:20;default:our" json:"liftType"`
	LiftMethod          string   `gorm:"size:50;default:elevator" json:"liftMethod"`
	PaymentStatus       string   `gorm:"size:100" json:"paymentStatus"`
	DeliveryDestination string   `gorm:"size:100;default:client" json:"deliveryDestination"`
	Comments            string   `json:"comments"`

	DeliveryStatus      DeliveryStatus `gorm:"size:20;index;default:pending" json:"deliveryStatus"`
	ClientRating        *int           `json:"clientRating"`
	PlannedShippingDate *time.Time     `json:"plannedShippingDate"`
	ActualShippingDate  *time.Time     `json:"actualShippingDate"`
}
