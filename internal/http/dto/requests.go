package dto

import "time"

type RegisterRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	District    *string `json:"district,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateOfferRequest struct {
	Title         string  `json:"title"`
	Author        *string `json:"author,omitempty"`
	OpenLibraryID *string `json:"open_library_id,omitempty"`
	Condition     *string `json:"condition,omitempty"` // new / very_good / good / acceptable
	District      *string `json:"district,omitempty"`
}

type CreateTransactionRequest struct {
	ProviderID      string      `json:"provider_id"`
	ConversationID  string      `json:"conversation_id,omitempty"` // empty: find or start one
	TransactionType string      `json:"transaction_type"`
	OfferType       string      `json:"offer_type"`
	OfferID         string      `json:"offer_id"`
	InitialMessage  string      `json:"initial_message"`
	ProposedTimes   []time.Time `json:"proposed_times,omitempty"`
	CreditAmount    int         `json:"credit_amount,omitempty"` // 0: server default
}

type ProposeTimeRequest struct {
	ProposedTime time.Time `json:"proposed_time"`
}

type ConfirmTimeRequest struct {
	ConfirmedTime time.Time `json:"confirmed_time"`
	ExactAddress  string    `json:"exact_address"`
}

type ConfirmHandoverRequest struct {
	Note *string `json:"note,omitempty"`
}

type RejectTransactionRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type CancelTransactionRequest struct {
	Reason *string `json:"reason,omitempty"`
}
