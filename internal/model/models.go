package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type JobStatus string

const (
	JobCreated   JobStatus = "created"
	JobPublished JobStatus = "published"
	JobDone      JobStatus = "done"
	JobError     JobStatus = "error"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// Job 一次转发请求的生命周期: created -> published -> done | error
// OperationHash is set exactly when the job is published or done.
type Job struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ForgedOperation *string   `gorm:"type:text" json:"forged_operation"`
	OperationHash   *string   `gorm:"type:varchar(64);index" json:"operation_hash"`
	OperationKind   string    `gorm:"type:varchar(32);not null" json:"operation_kind"`
	Status          JobStatus `gorm:"type:varchar(16);not null;default:'created';index" json:"status"`
	ErrorMessage    *string   `gorm:"type:text" json:"error_message"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// Operation 操作快照 (一个 Job 对应多条, 插入后不可变)
// Parameters holds the Micheline value sent to the node, ParametersJSON the
// caller's JSON parameters for read APIs.
type Operation struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID          uint64          `gorm:"not null;index" json:"job_id"`
	Branch         string          `gorm:"type:varchar(64);not null" json:"branch"`
	Kind           string          `gorm:"type:varchar(32);not null" json:"kind"`
	Source         string          `gorm:"type:varchar(64);not null" json:"source"`
	Destination    *string         `gorm:"type:varchar(64)" json:"destination,omitempty"`
	PublicKey      *string         `gorm:"type:varchar(128)" json:"public_key,omitempty"`
	Amount         decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"amount"`
	Fee            decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"fee"`
	Counter        int64           `gorm:"not null" json:"counter"`
	GasLimit       int64           `gorm:"not null" json:"gas_limit"`
	StorageLimit   int64           `gorm:"not null" json:"storage_limit"`
	Entrypoint     *string         `gorm:"type:varchar(255)" json:"entrypoint,omitempty"`
	Parameters     *string         `gorm:"type:text" json:"parameters,omitempty"`
	ParametersJSON *string         `gorm:"type:text" json:"parameters_json,omitempty"`
	CallerID       *string         `gorm:"type:varchar(255)" json:"caller_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (Operation) TableName() string {
	return "operations"
}

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string    `gorm:"type:varchar(255);not null;default:''" json:"key"`
	Payload   []byte    `gorm:"type:bytea;not null" json:"payload"`
	Status    string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
