package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/mq"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/workflow"
)

// FactoryResponseSLADays is the response deadline stated to the complaint
// department when a complaint is sent to the factory.
const FactoryResponseSLADays = 2

// ComplaintService owns every complaint state transition. Each transition is
// one transaction: rule check, relationship check, mutation, optimistic
// save, audit comment and notification rows, all or nothing. Event publishing
// happens after commit and never fails the transition.
type ComplaintService struct {
	db         *gorm.DB
	complaints *repository.ComplaintRepository
	users      *repository.UserRepository
	shipping   *repository.ShippingRepository
	notifier   *Notifier
	publisher  mq.Publisher
}

// NewComplaintService builds a service with dependencies. publisher may be
// nil when the event bus is unavailable.
func NewComplaintService(
	db *gorm.DB,
	complaints *repository.ComplaintRepository,
	users *repository.UserRepository,
	shipping *repository.ShippingRepository,
	notifier *Notifier,
	publisher mq.Publisher,
) *ComplaintService {
	return &ComplaintService{
		db:         db,
		complaints: complaints,
		users:      users,
		shipping:   shipping,
		notifier:   notifier,
		publisher:  publisher,
	}
}

// effects accumulates the audit comments and notification drafts a
// transition produces, so they persist in the same transaction.
type effects struct {
	commentAuthorID uint
	comments        []string
	drafts          []notificationDraft
}

func (e *effects) comment(text string) {
	e.comments = append(e.comments, text)
}

func (e *effects) notify(recipientID uint, channel models.NotificationChannel, title, message string) {
	e.drafts = append(e.drafts, notificationDraft{
		recipientID: recipientID,
		channel:     channel,
		title:       title,
		message:     message,
	})
}

// notifyUnless skips the draft when the would-be recipient is the actor.
func (e *effects) notifyUnless(actorID, recipientID uint, channel models.NotificationChannel, title, message string) {
	if recipientID == actorID {
		return
	}
	e.notify(recipientID, channel, title, message)
}

// transition runs one workflow operation end to end. mutate receives the
// freshly loaded complaint after the rule table has approved the operation;
// it performs relationship and parameter checks and applies field changes.
func (s *ComplaintService) transition(
	ctx context.Context,
	actor *models.User,
	complaintID uint,
	op workflow.Op,
	mutate func(tx *gorm.DB, c *models.Complaint, eff *effects) error,
) (*models.Complaint, error) {
	var (
		result  *models.Complaint
		created []models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crepo := s.complaints.WithTx(tx)
		c, err := crepo.FindByID(ctx, complaintID)
		if err != nil {
			return err
		}
		if err := workflow.Check(op, actor.Role, c.Status); err != nil {
			return err
		}
		eff := &effects{commentAuthorID: actor.ID}
		if err := mutate(tx, c, eff); err != nil {
			return err
		}
		if err := crepo.SaveVersioned(ctx, c); err != nil {
			return err
		}
		for _, text := range eff.comments {
			comment := &models.Comment{
				ComplaintID: c.ID,
				AuthorID:    eff.commentAuthorID,
				Text:        text,
			}
			if err := crepo.AddComment(ctx, comment); err != nil {
				return err
			}
		}
		created, err = s.notifier.createAll(ctx, tx, c.ID, eff.drafts)
		if err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishComplaintEvent(ctx, result, op)
	s.notifier.Dispatch(ctx, created)
	return s.complaints.FindByID(ctx, result.ID)
}

func (s *ComplaintService) publishComplaintEvent(ctx context.Context, c *models.Complaint, op workflow.Op) {
	if s.publisher == nil {
		return
	}
	event := mq.NewEvent(c.ID, "complaint."+string(op), map[string]any{
		"status":        c.Status,
		"complaintType": c.ComplaintType,
	})
	if err := s.publisher.Publish(ctx, "complaint."+string(op), event); err != nil {
		log.Printf("publish complaint.%s for complaint %d failed: %v", op, c.ID, err)
	}
}

// ServiceManagerFor picks the service manager responsible for the
// complaint: the recipient when they hold the role, else a service manager
// sharing the initiator's city, else any service manager. Pure lookup, used
// only to route notifications. Shared with the overdue scanner so the
// fallback chain stays in one place.
func ServiceManagerFor(ctx context.Context, users *repository.UserRepository, c *models.Complaint) *models.User {
	if c.Recipient != nil && c.Recipient.Role == models.RoleServiceManager {
		return c.Recipient
	}
	city := ""
	if c.Initiator != nil {
		city = c.Initiator.City
	}
	if city != "" {
		if sm, err := users.FindFirstByRole(ctx, models.RoleServiceManager, city); err == nil && sm != nil {
			return sm
		}
	}
	sm, err := users.FindFirstByRole(ctx, models.RoleServiceManager, "")
	if err != nil {
		log.Printf("resolve service manager for complaint %d: %v", c.ID, err)
		return nil
	}
	return sm
}

func (s *ComplaintService) notifyServiceManager(ctx context.Context, c *models.Complaint, eff *effects, actorID uint, title, message string) {
	if sm := ServiceManagerFor(ctx, s.users, c); sm != nil {
		eff.notifyUnless(actorID, sm.ID, models.ChannelPush, title, message)
	}
}

// resolveInitialRecipient is the single place recipient fallback happens at
// creation: a service manager in the initiator's city, else the first
// service manager overall.
func (s *ComplaintService) resolveInitialRecipient(ctx context.Context, initiator *models.User) (*models.User, error) {
	if initiator.City != "" {
		sm, err := s.users.FindFirstByRole(ctx, models.RoleServiceManager, initiator.City)
		if err != nil {
			return nil, err
		}
		if sm != nil {
			return sm, nil
		}
	}
	sm, err := s.users.FindFirstByRole(ctx, models.RoleServiceManager, "")
	if err != nil {
		return nil, err
	}
	if sm == nil {
		return nil, apperr.NotFound("no service manager available for assignment")
	}
	return sm, nil
}

// DefectiveProductInput is one faulty item supplied at creation.
type DefectiveProductInput struct {
	ProductName        string `json:"productName"`
	Size               string `json:"size"`
	OpeningType        string `json:"openingType"`
	ProblemDescription string `json:"problemDescription"`
}

// AttachmentInput is file metadata supplied at creation.
type AttachmentInput struct {
	FilePath    string `json:"filePath"`
	Description string `json:"description"`
}

// CreateComplaintInput carries everything needed to open a complaint.
type CreateComplaintInput struct {
	OrderNumber         string                  `json:"orderNumber"`
	ClientName          string                  `json:"clientName"`
	Address             string                  `json:"address"`
	ContactPerson       string                  `json:"contactPerson"`
	ContactPhone        string                  `json:"contactPhone"`
	ProblemDescription  string                  `json:"problemDescription"`
	DocumentPackageLink string                  `json:"documentPackageLink"`
	AdditionalInfo      string                  `json:"additionalInfo"`
	AssigneeComment     string                  `json:"assigneeComment"`
	ManagerID           uint                    `json:"managerId"`
	RecipientID         uint                    `json:"recipientId"`
	InstallerID         uint                    `json:"installerId"`
	ProductionSiteID    *uint                   `json:"productionSiteId"`
	ReasonID            *uint                   `json:"reasonId"`
	ComplaintType       models.ComplaintType    `json:"complaintType"`
	DefectiveProducts   []DefectiveProductInput `json:"defectiveProducts"`
	Attachments         []AttachmentInput       `json:"attachments"`
}

func (in *CreateComplaintInput) validate() error {
	required := []struct{ field, value string }{
		{"orderNumber", in.OrderNumber},
		{"clientName", in.ClientName},
		{"address", in.Address},
		{"contactPerson", in.ContactPerson},
		{"contactPhone", in.ContactPhone},
	}
	for _, r := range required {
		if r.value == "" {
			return apperr.MissingField(r.field, "required")
		}
	}
	if in.ManagerID == 0 {
		return apperr.MissingField("managerId", "an order manager is required")
	}
	return nil
}

// Create opens a new complaint with status new, resolving the recipient
// once, and optionally enters a branch immediately when a service manager
// supplies a complaint type.
func (s *ComplaintService) Create(ctx context.Context, actor *models.User, in CreateComplaintInput) (*models.Complaint, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	manager, err := s.users.FindByID(ctx, in.ManagerID)
	if err != nil {
		return nil, apperr.NotFound("manager not found")
	}
	if manager.Role != models.RoleManager {
		return nil, apperr.MissingField("managerId", "referenced user is not a manager")
	}

	recipient, err := s.resolveRecipientForCreate(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	complaint := &models.Complaint{
		InitiatorID:         actor.ID,
		RecipientID:         recipient.ID,
		ManagerID:           &manager.ID,
		OrderNumber:         in.OrderNumber,
		ClientName:          in.ClientName,
		Address:             in.Address,
		ContactPerson:       in.ContactPerson,
		ContactPhone:        in.ContactPhone,
		ProblemDescription:  in.ProblemDescription,
		DocumentPackageLink: in.DocumentPackageLink,
		AdditionalInfo:      in.AdditionalInfo,
		AssigneeComment:     in.AssigneeComment,
		ProductionSiteID:    in.ProductionSiteID,
		ReasonID:            in.ReasonID,
		Status:              models.StatusNew,
	}
	for i, p := range in.DefectiveProducts {
		if p.ProductName == "" {
			continue
		}
		complaint.DefectiveProducts = append(complaint.DefectiveProducts, models.DefectiveProduct{
			ProductName:        p.ProductName,
			Size:               p.Size,
			OpeningType:        p.OpeningType,
			ProblemDescription: p.ProblemDescription,
			Position:           i,
		})
	}
	for _, a := range in.Attachments {
		if a.FilePath == "" {
			continue
		}
		complaint.Attachments = append(complaint.Attachments, models.Attachment{
			FilePath:       a.FilePath,
			AttachmentType: models.AttachmentTypeForFilename(a.FilePath),
			Description:    a.Description,
		})
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, err
	}

	if actor.Role == models.RoleServiceManager && in.ComplaintType != models.TypeUnset {
		switch in.ComplaintType {
		case models.TypeInstaller:
			return s.SetTypeInstaller(ctx, actor, complaint.ID, in.InstallerID)
		case models.TypeManager:
			return s.SetTypeManager(ctx, actor, complaint.ID)
		case models.TypeFactory:
			return s.SetTypeFactory(ctx, actor, complaint.ID)
		default:
			return nil, apperr.MissingField("complaintType", "unknown complaint type")
		}
	}
	return s.complaints.FindByID(ctx, complaint.ID)
}

func (s *ComplaintService) resolveRecipientForCreate(ctx context.Context, actor *models.User, in CreateComplaintInput) (*models.User, error) {
	if in.RecipientID != 0 {
		recipient, err := s.users.FindByID(ctx, in.RecipientID)
		if err != nil {
			return nil, apperr.NotFound("recipient not found")
		}
		return recipient, nil
	}
	switch actor.Role {
	case models.RoleServiceManager:
		return actor, nil
	default:
		return s.resolveInitialRecipient(ctx, actor)
	}
}

// Get loads one complaint after an object-level access check.
func (s *ComplaintService) Get(ctx context.Context, actor *models.User, id uint) (*models.Complaint, error) {
	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, complaint) {
		return nil, apperr.Forbidden("you have no access to this complaint")
	}
	return complaint, nil
}

// ListOptions are the supported list query filters, applied after the
// role-visibility scope.
type ListOptions struct {
	Status        models.ComplaintStatus
	ComplaintType models.ComplaintType
	Search        string
	CreatedByMe   bool
	MyOrders      bool
	NeedsPlanning bool
	MyTasks       string
	ExcludeClosed bool
	City          string
	Sort          string
}

// List returns the complaints the actor may see, narrowed by options.
func (s *ComplaintService) List(ctx context.Context, actor *models.User, opts ListOptions) ([]models.Complaint, error) {
	scopes := []repository.Scope{VisibilityScope(actor)}

	if opts.Status != "" {
		scopes = append(scopes, whereScope("complaints.status = ?", opts.Status))
	}
	if opts.ComplaintType != "" {
		scopes = append(scopes, whereScope("complaints.complaint_type = ?", opts.ComplaintType))
	}
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		scopes = append(scopes, whereScope(
			"complaints.order_number LIKE ? OR complaints.client_name LIKE ? OR complaints.contact_person LIKE ? OR complaints.address LIKE ? OR complaints.contact_phone LIKE ?",
			like, like, like, like, like,
		))
	}
	if opts.CreatedByMe {
		scopes = append(scopes, whereScope("complaints.initiator_id = ?", actor.ID))
	}
	if opts.MyOrders {
		switch actor.Role {
		case models.RoleManager:
			scopes = append(scopes, whereScope("complaints.manager_id = ? OR complaints.recipient_id = ?", actor.ID, actor.ID))
		case models.RoleInstaller:
			scopes = append(scopes, whereScope("complaints.installer_assigned_id = ?", actor.ID))
		default:
			scopes = append(scopes, whereScope("complaints.recipient_id = ?", actor.ID))
		}
	}
	if opts.NeedsPlanning && actor.Role == models.RoleInstaller {
		scopes = append(scopes, whereScope("complaints.status IN ?", []models.ComplaintStatus{
			models.StatusWaitingInstallerDate,
			models.StatusNeedsPlanning,
			models.StatusInstallerNotPlanned,
		}))
	}
	if opts.MyTasks != "" {
		if scope, ok := TaskScope(actor, opts.MyTasks); ok {
			scopes = append(scopes, scope)
		}
	}
	if opts.ExcludeClosed {
		scopes = append(scopes, whereScope("complaints.status NOT IN ?", []models.ComplaintStatus{
			models.StatusClosed, models.StatusCompleted,
		}))
	}
	if opts.City != "" && (actor.Role == models.RoleAdmin || actor.Role == models.RoleComplaintDepartment) {
		scopes = append(scopes, whereScope(
			"complaints.initiator_id IN (SELECT id FROM users WHERE city = ?) OR complaints.recipient_id IN (SELECT id FROM users WHERE city = ?) OR complaints.manager_id IN (SELECT id FROM users WHERE city = ?)",
			opts.City, opts.City, opts.City,
		))
	}
	if opts.Sort == "oldest" {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Order("complaints.created_at asc")
		})
	}
	return s.complaints.List(ctx, scopes...)
}

func whereScope(cond string, args ...any) repository.Scope {
	return func(q *gorm.DB) *gorm.DB { return q.Where(cond, args...) }
}

// SetTypeInstaller routes the complaint into the installer branch and
// assigns the installer who must plan a date.
func (s *ComplaintService) SetTypeInstaller(ctx context.Context, actor *models.User, complaintID, installerID uint) (*models.Complaint, error) {
	if installerID == 0 {
		return nil, apperr.MissingField("installerId", "an installer must be selected")
	}
	installer, err := s.users.FindByID(ctx, installerID)
	if err != nil || installer.Role != models.RoleInstaller {
		return nil, apperr.NotFound("installer not found")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpSetTypeInstaller, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.ComplaintType = models.TypeInstaller
		c.Status = models.StatusWaitingInstallerDate
		c.InstallerAssignedID = &installer.ID
		c.InstallerAssignedAt = &now

		eff.comment(fmt.Sprintf("Complaint type set to installer, assigned to %s", installer.DisplayName()))
		eff.notifyUnless(actor.ID, c.InitiatorID, models.ChannelPush,
			"Complaint routed to installer",
			fmt.Sprintf("Complaint %s has been assigned to installer %s", c.Ref(), installer.DisplayName()))
		eff.notify(installer.ID, models.ChannelPush,
			"Complaint assigned to you",
			fmt.Sprintf("Complaint %s assigned to you. Client: %s. Plan the installation date.", c.Ref(), c.ClientName))
		eff.notify(installer.ID, models.ChannelSMS,
			"Complaint assigned",
			fmt.Sprintf("Complaint %s (%s). Client: %s, phone: %s. Plan the installation date.",
				c.Ref(), c.OrderNumber, c.ClientName, c.ContactPhone))
		return nil
	})
}

// SetTypeManager routes the complaint into the manager (re-manufacture)
// branch. The order manager must already be assigned.
func (s *ComplaintService) SetTypeManager(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpSetTypeManager, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.ManagerID == nil {
			return apperr.MissingField("managerId", "manager must be assigned first")
		}
		c.ComplaintType = models.TypeManager
		c.Status = models.StatusInProgress

		eff.comment("Complaint type set to manager")
		eff.notifyUnless(actor.ID, *c.ManagerID, models.ChannelPush,
			"Complaint assigned to you",
			fmt.Sprintf("Complaint %s is in your queue. Start production once confirmed.", c.Ref()))
		return nil
	})
}

// SetTypeFactory routes the complaint into the factory dispute branch and
// notifies every complaint department user with the response deadline.
func (s *ComplaintService) SetTypeFactory(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	department, err := s.users.ListByRole(ctx, models.RoleComplaintDepartment)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, complaintID, workflow.OpSetTypeFactory, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		c.ComplaintType = models.TypeFactory
		c.Status = models.StatusSent

		eff.comment("Complaint type set to factory, sent to the complaint department")
		for _, u := range department {
			eff.notify(u.ID, models.ChannelPush,
				"Factory complaint received",
				fmt.Sprintf("Complaint %s (%s) requires a factory response within %d business days.",
					c.Ref(), c.OrderNumber, FactoryResponseSLADays))
		}
		return nil
	})
}

func applyInstallationPlan(c *models.Complaint, installer *models.User, date time.Time) {
	now := time.Now().UTC()
	if c.InstallerAssignedID == nil || *c.InstallerAssignedID != installer.ID {
		c.InstallerAssignedID = &installer.ID
		c.InstallerAssignedAt = &now
	}
	c.PlannedInstallationDate = &date
	if c.PlannedShippingDate != nil {
		c.Status = models.StatusBothPlanned
	} else {
		c.Status = models.StatusInstallationPlanned
	}
}

// PlanInstallation lets the assigned installer pick their own date.
func (s *ComplaintService) PlanInstallation(ctx context.Context, actor *models.User, complaintID uint, date time.Time) (*models.Complaint, error) {
	if date.IsZero() {
		return nil, apperr.MissingField("installationDate", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpPlanInstallation, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.InstallerAssignedID != nil && *c.InstallerAssignedID != actor.ID {
			return apperr.Forbidden("only the assigned installer may plan this installation")
		}
		applyInstallationPlan(c, actor, date)

		eff.comment(fmt.Sprintf("Installation planned for %s", date.Format("02.01.2006 15:04")))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Installation planned",
			fmt.Sprintf("Installer %s planned the installation for complaint %s on %s",
				actor.DisplayName(), c.Ref(), date.Format("02.01.2006 15:04")))
		return nil
	})
}

// PlanInstallationBySM lets a service manager plan the installation on the
// installer's behalf.
func (s *ComplaintService) PlanInstallationBySM(ctx context.Context, actor *models.User, complaintID, installerID uint, date time.Time) (*models.Complaint, error) {
	if installerID == 0 {
		return nil, apperr.MissingField("installerId", "required")
	}
	if date.IsZero() {
		return nil, apperr.MissingField("installationDate", "required")
	}
	installer, err := s.users.FindByID(ctx, installerID)
	if err != nil || installer.Role != models.RoleInstaller {
		return nil, apperr.NotFound("installer not found")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpPlanInstallationBySM, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		applyInstallationPlan(c, installer, date)

		eff.comment(fmt.Sprintf("Installation planned by service manager for %s, installer %s",
			date.Format("02.01.2006 15:04"), installer.DisplayName()))
		eff.notify(installer.ID, models.ChannelPush,
			"Installation scheduled",
			fmt.Sprintf("Complaint %s: installation scheduled for %s", c.Ref(), date.Format("02.01.2006 15:04")))
		eff.notify(installer.ID, models.ChannelSMS,
			"Installation scheduled",
			fmt.Sprintf("Complaint %s (%s): installation on %s. Client: %s, phone: %s",
				c.Ref(), c.OrderNumber, date.Format("02.01.2006 15:04"), c.ClientName, c.ContactPhone))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Installation planned",
			fmt.Sprintf("Installation for complaint %s planned on %s", c.Ref(), date.Format("02.01.2006 15:04")))
		return nil
	})
}

// MarkCompleted is called by the assigned installer once the on-site work is
// done; the complaint waits for service manager review.
func (s *ComplaintService) MarkCompleted(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpMarkCompleted, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.InstallerAssignedID == nil || *c.InstallerAssignedID != actor.ID {
			return apperr.Forbidden("only the assigned installer may mark the work completed")
		}
		c.Status = models.StatusUnderSMReview

		eff.comment(fmt.Sprintf("Installer %s marked the work completed", actor.DisplayName()))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Work completed, review required",
			fmt.Sprintf("Installer %s finished complaint %s, review and approve the work", actor.DisplayName(), c.Ref()))
		return nil
	})
}

// ApproveBySM closes the installer branch: the service manager confirms the
// work and the complaint becomes completed.
func (s *ComplaintService) ApproveBySM(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpApproveBySM, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.Status = models.StatusCompleted
		c.CompletionDate = &now

		eff.comment(fmt.Sprintf("Complaint reviewed and approved by service manager %s", actor.DisplayName()))
		if c.InstallerAssignedID != nil {
			eff.notify(*c.InstallerAssignedID, models.ChannelPush,
				"Work approved",
				fmt.Sprintf("Your work on complaint %s was approved by the service manager", c.Ref()))
		}
		// There is no client contact channel in the model, so the client
		// rating request cannot be delivered and is skipped.
		return nil
	})
}

// StartProduction is the manager-branch entry into manufacturing.
func (s *ComplaintService) StartProduction(ctx context.Context, actor *models.User, complaintID uint, deadline time.Time) (*models.Complaint, error) {
	if deadline.IsZero() {
		return nil, apperr.MissingField("productionDeadline", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpStartProduction, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.ManagerID == nil || *c.ManagerID != actor.ID {
			return apperr.Forbidden("only the assigned manager may start production")
		}
		c.Status = models.StatusInProduction
		c.ProductionDeadline = &deadline

		eff.comment(fmt.Sprintf("Production started, deadline %s", deadline.Format("02.01.2006")))
		eff.notifyUnless(actor.ID, *c.ManagerID, models.ChannelPush,
			"Production started",
			fmt.Sprintf("Complaint %s is in production until %s", c.Ref(), deadline.Format("02.01.2006")))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Production started",
			fmt.Sprintf("Complaint %s went into production, deadline %s", c.Ref(), deadline.Format("02.01.2006")))
		return nil
	})
}

func (s *ComplaintService) markWarehouse(ctx context.Context, tx *gorm.DB, c *models.Complaint, eff *effects, actorID uint) error {
	c.Status = models.StatusOnWarehouse
	if err := s.ensureShippingEntry(ctx, tx, c); err != nil {
		return err
	}
	eff.comment("Product ready on warehouse")
	if c.ManagerID != nil {
		eff.notifyUnless(actorID, *c.ManagerID, models.ChannelPush,
			"Product on warehouse",
			fmt.Sprintf("Complaint %s: the product is ready on the warehouse", c.Ref()))
	}
	s.notifyServiceManager(ctx, c, eff, actorID,
		"Product on warehouse",
		fmt.Sprintf("Complaint %s: the product is ready on the warehouse, plan shipping and installation", c.Ref()))
	return nil
}

// MarkOnWarehouse records that the manufactured product reached the
// warehouse and idempotently creates the shipping registry entry.
func (s *ComplaintService) MarkOnWarehouse(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpMarkOnWarehouse, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.ManagerID == nil || *c.ManagerID != actor.ID {
			return apperr.Forbidden("only the assigned manager may mark the product on warehouse")
		}
		return s.markWarehouse(ctx, tx, c, eff, actor.ID)
	})
}

// MarkOnWarehouseOR is the complaint-department variant for factory-type
// complaints in production.
func (s *ComplaintService) MarkOnWarehouseOR(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpMarkWarehouseOR, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.ComplaintType != models.TypeFactory {
			return apperr.InvalidState("this action applies to factory complaints only")
		}
		return s.markWarehouse(ctx, tx, c, eff, actor.ID)
	})
}

// PlanShipping sets the shipping date; the status lands on both_planned when
// an installation date already exists.
func (s *ComplaintService) PlanShipping(ctx context.Context, actor *models.User, complaintID uint, date time.Time) (*models.Complaint, error) {
	if date.IsZero() {
		return nil, apperr.MissingField("shippingDate", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpPlanShipping, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.ManagerID == nil || *c.ManagerID != actor.ID {
			return apperr.Forbidden("only the assigned manager may plan shipping")
		}
		c.PlannedShippingDate = &date
		if c.PlannedInstallationDate != nil {
			c.Status = models.StatusBothPlanned
		} else {
			c.Status = models.StatusShippingPlanned
		}
		if err := s.ensureShippingEntry(ctx, tx, c); err != nil {
			return err
		}

		eff.comment(fmt.Sprintf("Shipping planned for %s", date.Format("02.01.2006")))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Shipping planned",
			fmt.Sprintf("Complaint %s: shipping planned for %s", c.Ref(), date.Format("02.01.2006")))
		return nil
	})
}

// FactoryApprove records the factory's positive response; the service
// manager must now agree the deadline with the client.
func (s *ComplaintService) FactoryApprove(ctx context.Context, actor *models.User, complaintID uint) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpFactoryApprove, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.Status = models.StatusFactoryApproved
		c.FactoryResponseDate = &now

		eff.comment("Factory approved the complaint")
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Factory response received",
			fmt.Sprintf("Complaint %s was approved by the factory, agree the deadline with the client", c.Ref()))
		return nil
	})
}

// FactoryReject records the factory's refusal with its reason.
func (s *ComplaintService) FactoryReject(ctx context.Context, actor *models.User, complaintID uint, reason string) (*models.Complaint, error) {
	if reason == "" {
		return nil, apperr.MissingField("rejectReason", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpFactoryReject, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.Status = models.StatusFactoryRejected
		c.FactoryResponseDate = &now
		c.FactoryRejectReason = reason

		eff.comment(fmt.Sprintf("Factory rejected the complaint. Reason: %s", reason))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Factory rejected the complaint",
			fmt.Sprintf("Complaint %s was rejected by the factory: %s", c.Ref(), reason))
		return nil
	})
}

// SMAgreeWithClient confirms the factory decision with the client and sends
// the order into production.
func (s *ComplaintService) SMAgreeWithClient(ctx context.Context, actor *models.User, complaintID uint, deadline time.Time) (*models.Complaint, error) {
	if deadline.IsZero() {
		return nil, apperr.MissingField("productionDeadline", "required")
	}
	department, err := s.users.ListByRole(ctx, models.RoleComplaintDepartment)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, complaintID, workflow.OpSMAgreeWithClient, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.Status = models.StatusInProduction
		c.ClientAgreementDate = &now
		c.ProductionDeadline = &deadline

		eff.comment(fmt.Sprintf("Service manager agreed the factory decision with the client. Production deadline: %s",
			deadline.Format("02.01.2006")))
		for _, u := range department {
			eff.notifyUnless(actor.ID, u.ID, models.ChannelPush,
				"Client agreed, order in production",
				fmt.Sprintf("Complaint %s: the client agreed, production deadline %s", c.Ref(), deadline.Format("02.01.2006")))
		}
		return nil
	})
}

// SMDisputeFactory escalates a dispute with the factory over its decision.
func (s *ComplaintService) SMDisputeFactory(ctx context.Context, actor *models.User, complaintID uint, arguments string) (*models.Complaint, error) {
	if arguments == "" {
		return nil, apperr.MissingField("disputeArguments", "required")
	}
	department, err := s.users.ListByRole(ctx, models.RoleComplaintDepartment)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, complaintID, workflow.OpSMDisputeFactory, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		c.Status = models.StatusFactoryDispute
		c.DisputeArguments = arguments

		eff.comment(fmt.Sprintf("Service manager disputed the factory decision. Arguments: %s", arguments))
		for _, u := range department {
			eff.notifyUnless(actor.ID, u.ID, models.ChannelPush,
				"Factory decision disputed",
				fmt.Sprintf("Complaint %s: the service manager disputed the factory decision", c.Ref()))
		}
		return nil
	})
}

// Close terminates the complaint from any non-terminal stage except review,
// recording the reason in the audit trail.
func (s *ComplaintService) Close(ctx context.Context, actor *models.User, complaintID uint, reason string) (*models.Complaint, error) {
	return s.transition(ctx, actor, complaintID, workflow.OpClose, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		c.Status = models.StatusClosed
		c.CompletionDate = &now

		if reason != "" {
			eff.comment(fmt.Sprintf("Complaint closed by service manager. Reason: %s", reason))
		} else {
			eff.comment("Complaint closed by service manager without a stated reason")
		}
		eff.notifyUnless(actor.ID, c.InitiatorID, models.ChannelPush,
			"Complaint closed",
			fmt.Sprintf("Complaint %s was closed by the service manager", c.Ref()))
		if c.ManagerID != nil {
			eff.notifyUnless(actor.ID, *c.ManagerID, models.ChannelPush,
				"Complaint closed",
				fmt.Sprintf("Complaint %s was closed by the service manager", c.Ref()))
		}
		return nil
	})
}

// ChangeInstaller reassigns the installer, informing both the old and the
// new one.
func (s *ComplaintService) ChangeInstaller(ctx context.Context, actor *models.User, complaintID, newInstallerID uint) (*models.Complaint, error) {
	if newInstallerID == 0 {
		return nil, apperr.MissingField("newInstallerId", "required")
	}
	installer, err := s.users.FindByID(ctx, newInstallerID)
	if err != nil || installer.Role != models.RoleInstaller {
		return nil, apperr.NotFound("installer not found")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpChangeInstaller, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		now := time.Now().UTC()
		var old *models.User
		if c.InstallerAssigned != nil && c.InstallerAssigned.ID != installer.ID {
			old = c.InstallerAssigned
		}
		c.InstallerAssignedID = &installer.ID
		c.InstallerAssignedAt = &now

		if old != nil {
			eff.comment(fmt.Sprintf("Installer changed: %s -> %s", old.DisplayName(), installer.DisplayName()))
			eff.notify(old.ID, models.ChannelPush,
				"Removed from complaint",
				fmt.Sprintf("Complaint %s was assigned to another installer", c.Ref()))
			eff.notify(old.ID, models.ChannelSMS,
				"Removed from complaint",
				fmt.Sprintf("Complaint %s (%s) was assigned to another installer", c.Ref(), c.OrderNumber))
		} else {
			eff.comment(fmt.Sprintf("Installer assigned: %s", installer.DisplayName()))
		}
		eff.notify(installer.ID, models.ChannelPush,
			"Complaint assigned to you",
			fmt.Sprintf("Complaint %s assigned to you. Client: %s", c.Ref(), c.ClientName))
		eff.notify(installer.ID, models.ChannelSMS,
			"Complaint assigned",
			fmt.Sprintf("Complaint %s (%s). Client: %s, phone: %s", c.Ref(), c.OrderNumber, c.ClientName, c.ContactPhone))
		return nil
	})
}

// RescheduleInstallation moves an already planned installation date without
// changing the workflow status.
func (s *ComplaintService) RescheduleInstallation(ctx context.Context, actor *models.User, complaintID uint, date time.Time) (*models.Complaint, error) {
	if date.IsZero() {
		return nil, apperr.MissingField("installationDate", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpRescheduleInstallation, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if c.InstallerAssignedID == nil || *c.InstallerAssignedID != actor.ID {
			return apperr.Forbidden("only the assigned installer may reschedule the installation")
		}
		if c.PlannedInstallationDate == nil {
			return apperr.InvalidState("the installation has not been planned yet")
		}
		old := *c.PlannedInstallationDate
		c.PlannedInstallationDate = &date

		eff.comment(fmt.Sprintf("Installation rescheduled: %s -> %s",
			old.Format("02.01.2006 15:04"), date.Format("02.01.2006 15:04")))
		s.notifyServiceManager(ctx, c, eff, actor.ID,
			"Installation rescheduled",
			fmt.Sprintf("Installer moved the installation for complaint %s to %s", c.Ref(), date.Format("02.01.2006 15:04")))
		if c.ManagerID != nil {
			eff.notifyUnless(actor.ID, *c.ManagerID, models.ChannelPush,
				"Installation rescheduled",
				fmt.Sprintf("Installation for complaint %s moved to %s", c.Ref(), date.Format("02.01.2006 15:04")))
		}
		return nil
	})
}

// UpdateClientContactInput carries the editable client contact fields.
type UpdateClientContactInput struct {
	ContactPerson string `json:"contactPerson"`
	ContactPhone  string `json:"contactPhone"`
	Address       string `json:"address"`
}

// UpdateClientContact edits the client contact details, records the diff and
// informs every participant except the actor.
func (s *ComplaintService) UpdateClientContact(ctx context.Context, actor *models.User, complaintID uint, in UpdateClientContactInput) (*models.Complaint, error) {
	if in.ContactPerson == "" {
		return nil, apperr.MissingField("contactPerson", "required")
	}
	if in.ContactPhone == "" {
		return nil, apperr.MissingField("contactPhone", "required")
	}
	return s.transition(ctx, actor, complaintID, workflow.OpUpdateClientContact, func(tx *gorm.DB, c *models.Complaint, eff *effects) error {
		if actor.Role == models.RoleServiceManager && actor.City != "" &&
			c.Manager != nil && c.Manager.City != "" && c.Manager.City != actor.City {
			return apperr.Forbidden("you may not edit complaints of another city")
		}

		diff := "Client contact details changed:"
		if c.ContactPerson != in.ContactPerson {
			diff += fmt.Sprintf("\ncontact person: %s -> %s", c.ContactPerson, in.ContactPerson)
		}
		if c.ContactPhone != in.ContactPhone {
			diff += fmt.Sprintf("\nphone: %s -> %s", c.ContactPhone, in.ContactPhone)
		}
		if in.Address != "" && c.Address != in.Address {
			diff += fmt.Sprintf("\naddress: %s -> %s", c.Address, in.Address)
		}
		c.ContactPerson = in.ContactPerson
		c.ContactPhone = in.ContactPhone
		if in.Address != "" {
			c.Address = in.Address
		}

		eff.comment(diff)
		title := "Client contact details changed"
		message := fmt.Sprintf("Complaint %s: client contact details changed. New contact: %s", c.Ref(), in.ContactPerson)
		eff.notifyUnless(actor.ID, c.InitiatorID, models.ChannelPush, title, message)
		eff.notifyUnless(actor.ID, c.RecipientID, models.ChannelPush, title, message)
		if c.ManagerID != nil {
			eff.notifyUnless(actor.ID, *c.ManagerID, models.ChannelPush, title, message)
		}
		if c.InstallerAssignedID != nil {
			eff.notifyUnless(actor.ID, *c.InstallerAssignedID, models.ChannelSMS, title,
				fmt.Sprintf("Complaint %s: new contact %s, phone %s", c.Ref(), in.ContactPerson, in.ContactPhone))
		}
		return nil
	})
}

// SendFactoryEmail emails the complaint package to the complaint department.
// Factory-type complaints only.
func (s *ComplaintService) SendFactoryEmail(ctx context.Context, actor *models.User, complaintID uint) error {
	switch actor.Role {
	case models.RoleServiceManager, models.RoleAdmin, models.RoleLeader:
	default:
		return apperr.Forbidden("you may not send factory emails")
	}
	complaint, err := s.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return err
	}
	if complaint.ComplaintType != models.TypeFactory {
		return apperr.InvalidState("factory emails apply to factory complaints only")
	}
	department, err := s.users.ListByRole(ctx, models.RoleComplaintDepartment)
	if err != nil {
		return err
	}
	var created []models.Notification
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drafts := make([]notificationDraft, 0, len(department))
		for _, u := range department {
			drafts = append(drafts, notificationDraft{
				recipientID: u.ID,
				channel:     models.ChannelEmail,
				title:       fmt.Sprintf("Factory complaint %s (%s)", complaint.Ref(), complaint.OrderNumber),
				message: fmt.Sprintf("Client: %s, address: %s. Problem: %s",
					complaint.ClientName, complaint.Address, complaint.ProblemDescription),
			})
		}
		var err error
		created, err = s.notifier.createAll(ctx, tx, complaint.ID, drafts)
		return err
	})
	if err != nil {
		return err
	}
	s.notifier.Dispatch(ctx, created)
	return nil
}

// AddComment appends a free-form comment to the audit trail.
func (s *ComplaintService) AddComment(ctx context.Context, actor *models.User, complaintID uint, text string) (*models.Comment, error) {
	if text == "" {
		return nil, apperr.MissingField("text", "required")
	}
	complaint, err := s.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, complaint) {
		return nil, apperr.Forbidden("you have no access to this complaint")
	}
	comment := &models.Comment{ComplaintID: complaint.ID, AuthorID: actor.ID, Text: text}
	if err := s.complaints.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns the audit trail after an access check.
func (s *ComplaintService) ListComments(ctx context.Context, actor *models.User, complaintID uint) ([]models.Comment, error) {
	complaint, err := s.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, complaint) {
		return nil, apperr.Forbidden("you have no access to this complaint")
	}
	return s.complaints.ListComments(ctx, complaintID)
}

// AddAttachment records uploaded file metadata on the complaint.
func (s *ComplaintService) AddAttachment(ctx context.Context, actor *models.User, complaintID uint, in AttachmentInput) (*models.Attachment, error) {
	if in.FilePath == "" {
		return nil, apperr.MissingField("filePath", "required")
	}
	complaint, err := s.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, complaint) {
		return nil, apperr.Forbidden("you have no access to this complaint")
	}
	attachment := &models.Attachment{
		ComplaintID:    complaint.ID,
		FilePath:       in.FilePath,
		AttachmentType: models.AttachmentTypeForFilename(in.FilePath),
		Description:    in.Description,
	}
	if err := s.complaints.AddAttachment(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// ensureShippingEntry creates the registry entry once per complaint,
// snapshotting shipment-relevant fields. Safe to call on every warehouse or
// shipping transition.
func (s *ComplaintService) ensureShippingEntry(ctx context.Context, tx *gorm.DB, c *models.Complaint) error {
	srepo := s.shipping.WithTx(tx)
	existing, err := srepo.FindByComplaintID(ctx, c.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		if c.PlannedShippingDate != nil &&
			(existing.PlannedShippingDate == nil || !existing.PlannedShippingDate.Equal(*c.PlannedShippingDate)) {
			existing.PlannedShippingDate = c.PlannedShippingDate
			return srepo.Update(ctx, existing)
		}
		return nil
	}
	entry := &models.ShippingEntry{
		ComplaintID:         &c.ID,
		OrderType:           models.OrderTypeComplaint,
		OrderNumber:         c.OrderNumber,
		ClientName:          c.ClientName,
		Address:             c.Address,
		ContactPerson:       c.ContactPerson,
		ContactPhone:        c.ContactPhone,
		ManagerID:           c.ManagerID,
		DoorsCount:          1,
		LiftType:            models.LiftOur,
		LiftMethod:          "elevator",
		DeliveryDestination: "client",
		DeliveryStatus:      models.DeliveryPending,
		PlannedShippingDate: c.PlannedShippingDate,
	}
	if err := srepo.Create(ctx, entry); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.AddedToShippingRegistryAt = &now
	return nil
}
