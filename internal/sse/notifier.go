package sse

import (
	"time"

	"github.com/GTDGit/passport_api/internal/models"
)

// RecordNotifier is the interface services use to emit record lifecycle events.
type RecordNotifier interface {
	NotifyRecordCreated(rec *models.PassportRecord)
	NotifyRecordTranslated(id int64)
	NotifyRecordUpdated(rec *models.PassportRecord)
	NotifyRecordDeleted(id int64)
}

// HubNotifier implements RecordNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyRecordCreated(rec *models.PassportRecord) {
	n.broadcastRecord(EventRecordCreated, rec)
}

func (n *HubNotifier) NotifyRecordUpdated(rec *models.PassportRecord) {
	n.broadcastRecord(EventRecordUpdated, rec)
}

func (n *HubNotifier) NotifyRecordTranslated(id int64) {
	n.broadcast(&RecordEvent{Event: EventRecordTranslated, RecordID: id})
}

func (n *HubNotifier) NotifyRecordDeleted(id int64) {
	n.broadcast(&RecordEvent{Event: EventRecordDeleted, RecordID: id})
}

func (n *HubNotifier) broadcastRecord(eventType EventType, rec *models.PassportRecord) {
	if rec == nil {
		return
	}
	n.broadcast(&RecordEvent{
		Event:          eventType,
		RecordID:       rec.ID,
		Filename:       rec.Filename,
		FullName:       rec.FullName,
		PassportNumber: rec.PassportNumber,
	})
}

func (n *HubNotifier) broadcast(event *RecordEvent) {
	if n.hub.ClientCount() == 0 {
		return
	}
	event.Timestamp = n.now().UTC()
	n.hub.Broadcast(event)
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifyRecordCreated(*models.PassportRecord) {}
func (NopNotifier) NotifyRecordTranslated(int64)               {}
func (NopNotifier) NotifyRecordUpdated(*models.PassportRecord) {}
func (NopNotifier) NotifyRecordDeleted(int64)                  {}
