package domain

var Tables = []interface{}{
	// System
	&SysOprLog{},
	// Meetings
	&Participant{},
	&Meeting{},
	&MeetingParticipant{},
	// Notify
	&NotifySettings{},
	&WhatsAppLog{},
}
