package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

// ScanAuditor keeps one document per processed scan, accepted or rejected, so
// staff can reconstruct what happened at a gate after the fact.
type ScanAuditor struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewScanAuditor(db *mongo.Database, logger observability.Logger) *ScanAuditor {
	return &ScanAuditor{
		coll:   db.Collection("scan_audits"),
		logger: logger,
	}
}

type ScanAudit struct {
	ID        uuid.UUID  `bson:"_id"`
	StationID string     `bson:"station_id"`
	Code      string     `bson:"code"`
	TicketID  *uuid.UUID `bson:"ticket_id,omitempty"`
	Result    string     `bson:"result"`
	Message   string     `bson:"message"`
	At        time.Time  `bson:"at"`
}

func (a *ScanAuditor) RecordScan(ctx context.Context, stationID, code string, outcome domain.ScanOutcome) error {
	doc := ScanAudit{
		ID:        uuid.New(),
		StationID: stationID,
		Code:      code,
		Result:    string(outcome.Result),
		Message:   outcome.Message,
		At:        outcome.At,
	}
	if outcome.Ticket != nil {
		id := outcome.Ticket.ID
		doc.TicketID = &id
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert scan audit")
		return err
	}
	return nil
}
