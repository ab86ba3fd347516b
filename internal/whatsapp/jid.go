package whatsapp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	waTypes "go.mau.fi/whatsmeow/types"
)

// IndividualJID builds the user JID of a phone number in any accepted form.
func IndividualJID(address string) (waTypes.JID, error) {
	if strings.Contains(address, "@") {
		return parseJID(address, waTypes.DefaultUserServer)
	}
	phone, err := domain.NormalizePhone(address)
	if err != nil {
		return waTypes.EmptyJID, err
	}
	return waTypes.NewJID(phone, waTypes.DefaultUserServer), nil
}

// GroupJID accepts "120363...@g.us" or the bare group id.
func GroupJID(groupID string) (waTypes.JID, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return waTypes.EmptyJID, errors.New("empty group id")
	}
	if strings.Contains(groupID, "@") {
		return parseJID(groupID, waTypes.GroupServer)
	}
	return waTypes.NewJID(groupID, waTypes.GroupServer), nil
}

func parseJID(s, server string) (waTypes.JID, error) {
	jid, err := waTypes.ParseJID(strings.TrimSpace(s))
	if err != nil {
		return waTypes.EmptyJID, errors.Wrapf(err, "invalid jid %q", s)
	}
	if jid.Server != server {
		return waTypes.EmptyJID, errors.Errorf("jid %q is not on %s", s, server)
	}
	return jid, nil
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
