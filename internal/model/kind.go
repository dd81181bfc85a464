package model

import "strings"

// Event kinds. The set is open; anything else gets TreatmentDefault.
const (
	KindClass      = "class"
	KindLecture    = "lecture"
	KindLab        = "lab"
	KindExam       = "exam"
	KindColloquium = "colloquium"
	KindMeeting    = "meeting"
	KindPrivate    = "private"
	KindSport      = "sport"
	KindOther      = "other"
)

// Treatment is the visual style family a renderer should use for a kind.
type Treatment string

const (
	TreatmentDefault  Treatment = "default"
	TreatmentSolid    Treatment = "solid"
	TreatmentEmphasis Treatment = "emphasis"
	TreatmentOutline  Treatment = "outline"
	TreatmentInvalid  Treatment = "invalid"
)

// TreatmentFor maps an event kind to its visual treatment.
func TreatmentFor(kind string) Treatment {
	switch strings.ToLower(kind) {
	case KindClass, KindLecture, KindLab:
		return TreatmentSolid
	case KindExam, KindColloquium:
		return TreatmentEmphasis
	case KindMeeting, KindPrivate, KindSport:
		return TreatmentOutline
	default:
		return TreatmentDefault
	}
}

// ClassifyKind derives a kind for records that do not carry one, from the
// class type, the event name and the upstream type field. Matching is on
// Polish keywords used by the university timetable feed.
func ClassifyKind(classType, name, typ string) string {
	classType = strings.ToLower(classType)
	name = strings.ToLower(name)
	typ = strings.ToLower(typ)
	if classType == "" {
		classType = typ
	}

	switch {
	case strings.Contains(classType, "wykład"):
		return KindLecture
	case strings.Contains(classType, "laboratorium"), strings.Contains(classType, "projekt"):
		return KindLab
	case typ == "exam",
		strings.Contains(name, "kolokwium"),
		strings.Contains(name, "egzamin"),
		strings.Contains(name, "wejściówka"):
		return KindColloquium
	case strings.Contains(name, "trening"):
		return KindSport
	default:
		return KindOther
	}
}
