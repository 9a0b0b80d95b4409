package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProposalStatus статус предложения обмена
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
)

func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal сообщает, что из статуса больше нет переходов
func (s ProposalStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseProposalStatus преобразует строку в ProposalStatus
func ParseProposalStatus(s string) (ProposalStatus, error) {
	st := ProposalStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("неизвестный статус предложения %q", s)
	}
	return st, nil
}

// Decision решение получателя по предложению
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ParseDecision принимает как "accept"/"reject", так и итоговые статусы "accepted"/"rejected"
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "accept", string(StatusAccepted):
		return DecisionAccept, nil
	case "reject", string(StatusRejected):
		return DecisionReject, nil
	}
	return "", fmt.Errorf("недопустимое решение %q", s)
}

// Status возвращает статус, в который переводит решение
func (d Decision) Status() ProposalStatus {
	if d == DecisionAccept {
		return StatusAccepted
	}
	return StatusRejected
}

// ExchangeProposal представляет предложение об обмене одного объявления на другое
type ExchangeProposal struct {
	ID           uuid.UUID      `json:"id"`
	AdSenderID   uuid.UUID      `json:"ad_sender_id"`
	AdReceiverID uuid.UUID      `json:"ad_receiver_id"`
	Comment      string         `json:"comment"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`

	// Владельцы объявлений, заполняются при чтении
	SenderUserID   uuid.UUID `json:"sender_user_id"`
	ReceiverUserID uuid.UUID `json:"receiver_user_id"`

	// Дополнительные поля для API
	AdSender   *Ad `json:"ad_sender,omitempty"`
	AdReceiver *Ad `json:"ad_receiver,omitempty"`
}

// ProposalFilter выборка предложений пользователя
type ProposalFilter struct {
	UserID uuid.UUID
	Box    ProposalBox
	Status *ProposalStatus
}

// ProposalBox направление предложения относительно пользователя
type ProposalBox string

const (
	BoxSent     ProposalBox = "sent"
	BoxReceived ProposalBox = "received"
)

// MyProposals предложения пользователя, разделенные на отправленные и полученные
type MyProposals struct {
	Sent     []ExchangeProposal `json:"sent"`
	Received []ExchangeProposal `json:"received"`
}
