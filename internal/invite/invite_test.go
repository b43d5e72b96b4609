package invite

import (
	"testing"

	ma "github.com/multiformats/go-multiaddr"
)

func TestInviteRoundTrip(t *testing.T) {
	m := &Invite{GroupName: "Book Club"}
	m.ChatID[0] = 1
	raw := m.Encode()
	got, err := DecodeInvite(raw)
	if err != nil {
		t.Fatalf("DecodeInvite: %v", err)
	}
	if got.ChatID != m.ChatID || got.GroupName != m.GroupName {
		t.Fatalf("invite mismatch: %+v", got)
	}
}

func TestAcceptedRoundTrip(t *testing.T) {
	m := &Accepted{Nickname: "bob"}
	m.ChatID[0] = 1
	m.EncPK[0] = 2
	m.SignPK[0] = 3
	raw := m.Encode()
	got, err := DecodeAccepted(raw)
	if err != nil {
		t.Fatalf("DecodeAccepted: %v", err)
	}
	if got.ChatID != m.ChatID || got.EncPK != m.EncPK || got.Nickname != "bob" {
		t.Fatalf("accepted mismatch: %+v", got)
	}
}

func TestConfirmationRoundTrip(t *testing.T) {
	relay, _ := ma.NewMultiaddr("/ip4/203.0.113.5/tcp/33445")
	m := &Confirmation{TCPRelays: []ma.Multiaddr{relay}, HasIPPort: true, IP: [4]byte{10, 0, 0, 1}, Port: 4242}
	m.ChatID[0] = 9
	m.InviterEncPK[0] = 7
	m.InviterSignPK[0] = 8
	raw, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeConfirmation(raw)
	if err != nil {
		t.Fatalf("DecodeConfirmation: %v", err)
	}
	if got.ChatID != m.ChatID || got.InviterEncPK != m.InviterEncPK || got.InviterSignPK != m.InviterSignPK || !got.HasIPPort || got.Port != 4242 || len(got.TCPRelays) != 1 {
		t.Fatalf("confirmation mismatch: %+v", got)
	}
}

func TestInviterAndInviteeFlowsHappyPath(t *testing.T) {
	invite := Invite{GroupName: "test"}
	invite.ChatID[0] = 1

	inviter := NewInviterFlow(invite)
	invitee := NewInviteeFlow(invite)

	accepted := &Accepted{ChatID: invite.ChatID, Nickname: "bob"}
	if err := inviter.OnAccepted(accepted); err != nil {
		t.Fatalf("OnAccepted: %v", err)
	}
	if err := invitee.OnAcceptedSent(); err != nil {
		t.Fatalf("OnAcceptedSent: %v", err)
	}
	if err := inviter.OnConfirmationSent(); err != nil {
		t.Fatalf("OnConfirmationSent: %v", err)
	}

	confirmation := &Confirmation{ChatID: invite.ChatID}
	if err := invitee.OnConfirmation(confirmation); err != nil {
		t.Fatalf("OnConfirmation: %v", err)
	}
	if invitee.State != InviteeConfirmationReceived {
		t.Fatalf("expected invitee flow complete, got %v", invitee.State)
	}
}

func TestInviterRejectsWrongChatID(t *testing.T) {
	invite := Invite{}
	invite.ChatID[0] = 1
	inviter := NewInviterFlow(invite)

	wrong := &Accepted{}
	wrong.ChatID[0] = 2
	if err := inviter.OnAccepted(wrong); err == nil {
		t.Fatal("expected error for mismatched chat_id")
	}
}

func TestFlowRejectsOutOfOrderMessages(t *testing.T) {
	invitee := NewInviteeFlow(Invite{})
	if err := invitee.OnConfirmation(&Confirmation{}); err != ErrInvalidInviteTransition {
		t.Fatalf("expected ErrInvalidInviteTransition, got %v", err)
	}
}
