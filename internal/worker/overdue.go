package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/service"
	"github.com/example/complaintflow/backend/internal/workflow"
)

// OverdueScanner periodically sweeps installer-type complaints whose
// installer never planned a date. One overdue row moves to
// installer_not_planned with an audit comment and notifications; rows
// already flagged get a daily reminder. A failing row is logged and the
// sweep continues.
type OverdueScanner struct {
	id         string
	db         *gorm.DB
	complaints *repository.ComplaintRepository
	users      *repository.UserRepository
	notifier   *service.Notifier
	interval   time.Duration
	slaDays    int
}

// NewOverdueScanner creates the scanner with a random identifier.
func NewOverdueScanner(
	db *gorm.DB,
	complaints *repository.ComplaintRepository,
	users *repository.UserRepository,
	notifier *service.Notifier,
	interval time.Duration,
	slaDays int,
) *OverdueScanner {
	return &OverdueScanner{
		id:         uuid.New().String(),
		db:         db,
		complaints: complaints,
		users:      users,
		notifier:   notifier,
		interval:   interval,
		slaDays:    slaDays,
	}
}

// Run starts the sweep loop and should be launched in its own goroutine.
func (w *OverdueScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("overdue scanner shutting down")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs both passes once.
func (w *OverdueScanner) Sweep(ctx context.Context) {
	w.flagUnplanned(ctx)
	w.remindUnplanned(ctx)
}

func (w *OverdueScanner) flagUnplanned(ctx context.Context) {
	waiting, err := w.complaints.List(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("complaints.complaint_type = ? AND complaints.status = ?",
			models.TypeInstaller, models.StatusWaitingInstallerDate)
	})
	if err != nil {
		log.Printf("overdue scan: list waiting complaints: %v", err)
		return
	}
	now := time.Now().UTC()
	for i := range waiting {
		c := &waiting[i]
		if workflow.BusinessDaysBetween(c.UpdatedAt, now) < w.slaDays {
			continue
		}
		if err := w.flagOne(ctx, c.ID); err != nil {
			log.Printf("overdue scan: complaint %d: %v", c.ID, err)
		}
	}
}

// flagOne reclassifies a single overdue complaint inside its own
// transaction, so one conflicting row never blocks the rest of the sweep.
func (w *OverdueScanner) flagOne(ctx context.Context, complaintID uint) error {
	var created []models.Notification
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crepo := w.complaints.WithTx(tx)
		c, err := crepo.FindByID(ctx, complaintID)
		if err != nil {
			return err
		}
		if c.Status != models.StatusWaitingInstallerDate {
			return nil
		}
		c.Status = models.StatusInstallerNotPlanned
		if err := crepo.SaveVersioned(ctx, c); err != nil {
			return err
		}
		comment := &models.Comment{
			ComplaintID: c.ID,
			AuthorID:    c.RecipientID,
			Text: fmt.Sprintf("Installer did not plan the installation within %d business days, complaint flagged as overdue",
				w.slaDays),
		}
		if err := crepo.AddComment(ctx, comment); err != nil {
			return err
		}
		created, err = w.notifier.CreateForScanner(ctx, tx, c, w.overdueDrafts(ctx, c))
		return err
	})
	if err != nil {
		return err
	}
	w.notifier.Dispatch(ctx, created)
	return nil
}

func (w *OverdueScanner) overdueDrafts(ctx context.Context, c *models.Complaint) []service.ScannerDraft {
	var drafts []service.ScannerDraft
	if c.InstallerAssignedID != nil {
		drafts = append(drafts,
			service.ScannerDraft{
				RecipientID: *c.InstallerAssignedID,
				Channel:     models.ChannelPush,
				Title:       "Installation date overdue",
				Message:     fmt.Sprintf("Complaint %s: the installation date was not planned in time. Plan it now.", c.Ref()),
			},
			service.ScannerDraft{
				RecipientID: *c.InstallerAssignedID,
				Channel:     models.ChannelSMS,
				Title:       "Installation date overdue",
				Message:     fmt.Sprintf("Complaint %s (%s): plan the installation date immediately", c.Ref(), c.OrderNumber),
			},
		)
	}
	if sm := service.ServiceManagerFor(ctx, w.users, c); sm != nil {
		drafts = append(drafts,
			service.ScannerDraft{
				RecipientID: sm.ID,
				Channel:     models.ChannelPush,
				Title:       "Installer missed the planning deadline",
				Message:     fmt.Sprintf("Complaint %s: the installer did not plan the installation in time", c.Ref()),
			},
			service.ScannerDraft{
				RecipientID: sm.ID,
				Channel:     models.ChannelPC,
				Title:       "Installer missed the planning deadline",
				Message:     fmt.Sprintf("Complaint %s: the installer did not plan the installation in time", c.Ref()),
			},
		)
	}
	return drafts
}

func (w *OverdueScanner) remindUnplanned(ctx context.Context) {
	flagged, err := w.complaints.List(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("complaints.status = ?", models.StatusInstallerNotPlanned)
	})
	if err != nil {
		log.Printf("overdue scan: list flagged complaints: %v", err)
		return
	}
	now := time.Now().UTC()
	for i := range flagged {
		c := &flagged[i]
		elapsed := workflow.BusinessDaysBetween(c.UpdatedAt, now)
		drafts := w.reminderDrafts(ctx, c, elapsed)
		if len(drafts) == 0 {
			continue
		}
		var created []models.Notification
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			created, err = w.notifier.CreateForScanner(ctx, tx, c, drafts)
			return err
		})
		if err != nil {
			log.Printf("overdue scan: remind complaint %d: %v", c.ID, err)
			continue
		}
		w.notifier.Dispatch(ctx, created)
	}
}

// reminderDrafts nags the installer when one is assigned and always tells
// the service manager how long the complaint has sat unplanned.
func (w *OverdueScanner) reminderDrafts(ctx context.Context, c *models.Complaint, elapsed int) []service.ScannerDraft {
	var drafts []service.ScannerDraft
	if c.InstallerAssignedID != nil {
		drafts = append(drafts, service.ScannerDraft{
			RecipientID: *c.InstallerAssignedID,
			Channel:     models.ChannelPush,
			Title:       "Reminder: plan the installation",
			Message:     fmt.Sprintf("Complaint %s is still waiting for an installation date (%d business days overdue)", c.Ref(), elapsed),
		})
	}
	if sm := service.ServiceManagerFor(ctx, w.users, c); sm != nil {
		drafts = append(drafts, service.ScannerDraft{
			RecipientID: sm.ID,
			Channel:     models.ChannelPush,
			Title:       fmt.Sprintf("Planning overdue %d business days", elapsed),
			Message:     fmt.Sprintf("Complaint %s is still not planned by the installer", c.Ref()),
		})
	}
	return drafts
}
