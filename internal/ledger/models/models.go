package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	InstanceID      int64
	UserID          int64
	LiabilityTypeID int64
	SubjectID       int64
	EntryID         int64
)

// Instance is the tenant isolation boundary. Instances are provisioned out of band.
type Instance struct {
	ID        InstanceID `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// User is an API client system acting on behalf of exactly one instance.
type User struct {
	ID         UserID     `json:"id"`
	Username   string     `json:"username"`
	InstanceID InstanceID `json:"instance_id"`
}

// HasInstance mirrors the permission every ledger operation requires.
func (u User) HasInstance() bool {
	return u.InstanceID != 0
}

// TypeRunning says who owns balance accounting for a liability type.
type TypeRunning string

const (
	TypeRunningInternal TypeRunning = "internal"
	TypeRunningExternal TypeRunning = "external"
)

// LiabilityType is a liability category owned by one instance.
//
// Invariants:
//   - (Postfix, InstanceID) is unique
type LiabilityType struct {
	ID          LiabilityTypeID `json:"id"`
	InstanceID  InstanceID      `json:"instance_id"`
	Name        string          `json:"name"`
	Postfix     string          `json:"postfix"`
	TypeRunning TypeRunning     `json:"type_running"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Subject is an external party, keyed by its natural ExternalID.
// Name is only set when the subject is first seen.
type Subject struct {
	ID         SubjectID `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       *string   `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entry is one append-only ledger row. AmountTotal is the lineage running
// total immediately after this entry.
//
// A lineage is every entry sharing (InstanceID, SubjectID, LiabilityTypeID).
// Entries are never updated or deleted; cancel and edit append new entries
// that reuse the original ReceiptNumber.
type Entry struct {
	ID              EntryID         `json:"id"`
	UserID          UserID          `json:"user_id"`
	InstanceID      InstanceID      `json:"instance_id"`
	LiabilityTypeID LiabilityTypeID `json:"liability_type_id"`
	SubjectID       SubjectID       `json:"subject_id"`
	ReceiptNumber   string          `json:"receipt_number"`
	AmountRecord    decimal.Decimal `json:"amount_record"`
	AmountTotal     decimal.Decimal `json:"amount_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LineageKey identifies one running total.
type LineageKey struct {
	InstanceID      InstanceID
	SubjectID       SubjectID
	LiabilityTypeID LiabilityTypeID
}

func (e *Entry) Lineage() LineageKey {
	return LineageKey{InstanceID: e.InstanceID, SubjectID: e.SubjectID, LiabilityTypeID: e.LiabilityTypeID}
}

// AddItem is one element of an add batch.
type AddItem struct {
	LiabilityTypeID LiabilityTypeID `json:"accumulation_section_id"`
	IncrementAmount decimal.Decimal `json:"increment_amount"`
}
