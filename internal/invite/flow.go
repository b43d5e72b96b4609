package invite

import "fmt"

// InviterState tracks the inviter's progress through the three-message
// handshake (§4.7).
type InviterState int

const (
	InviterNone InviterState = iota
	InviterSent
	InviterAcceptedReceived
	InviterConfirmationSent
)

// InviteeState tracks the invitee's progress through the handshake.
type InviteeState int

const (
	InviteeNone InviteeState = iota
	InviteeReceived
	InviteeAcceptedSent
	InviteeConfirmationReceived
)

// ErrInvalidInviteTransition reports an out-of-order or duplicate invite
// message.
var ErrInvalidInviteTransition = fmt.Errorf("invite: invalid handshake transition")

// InviterFlow tracks one outstanding invite this host sent.
type InviterFlow struct {
	State InviterState
	Sent  Invite
}

// NewInviterFlow records that an Invite was sent, starting the flow.
func NewInviterFlow(msg Invite) *InviterFlow {
	return &InviterFlow{State: InviterSent, Sent: msg}
}

// OnAccepted advances the flow on receiving the invitee's Accepted
// message, validating it targets the same chat.
func (f *InviterFlow) OnAccepted(msg *Accepted) error {
	if f.State != InviterSent {
		return ErrInvalidInviteTransition
	}
	if msg.ChatID != f.Sent.ChatID {
		return fmt.Errorf("invite: accepted message targets a different chat_id")
	}
	f.State = InviterAcceptedReceived
	return nil
}

// OnConfirmationSent records that this host replied with Confirmation,
// completing its side of the handshake (§4.7 step 3).
func (f *InviterFlow) OnConfirmationSent() error {
	if f.State != InviterAcceptedReceived {
		return ErrInvalidInviteTransition
	}
	f.State = InviterConfirmationSent
	return nil
}

// InviteeFlow tracks one outstanding invite this host received.
type InviteeFlow struct {
	State    InviteeState
	Received Invite
}

// NewInviteeFlow records that an Invite arrived, starting the flow.
func NewInviteeFlow(msg Invite) *InviteeFlow {
	return &InviteeFlow{State: InviteeReceived, Received: msg}
}

// OnAcceptedSent records that this host replied with Accepted (§4.7 step 2).
func (f *InviteeFlow) OnAcceptedSent() error {
	if f.State != InviteeReceived {
		return ErrInvalidInviteTransition
	}
	f.State = InviteeAcceptedSent
	return nil
}

// OnConfirmation advances the flow on receiving the inviter's
// Confirmation message, validating it targets the same chat. Once this
// returns successfully, the invitee has enough (relays and/or direct
// address) to begin the standard peer handshake (§4.2).
func (f *InviteeFlow) OnConfirmation(msg *Confirmation) error {
	if f.State != InviteeAcceptedSent {
		return ErrInvalidInviteTransition
	}
	if msg.ChatID != f.Received.ChatID {
		return fmt.Errorf("invite: confirmation targets a different chat_id")
	}
	f.State = InviteeConfirmationReceived
	return nil
}
