// Package checkin chooses and executes one of the four attendance check-in flows.
//
// The flow is fixed by two independent axes: who is checking in (a signed-in
// student or a shared kiosk) and how they are verified (face capture or QR).
// Select is pure; Service sends the selected request on the matching client.
package checkin

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"campusattend/internal/apiclient"
	"campusattend/internal/endpoint"
)

// Actor is who initiates the check-in.
type Actor string

const (
	ActorAuthenticated Actor = "authenticated"
	ActorKiosk         Actor = "kiosk"
)

// Verification is how the student proves presence.
type Verification string

const (
	VerificationFace Verification = "face"
	VerificationQR   Verification = "qr"
)

var (
	ErrUnknownMode  = errors.New("unknown check-in mode")
	ErrMissingField = errors.New("missing check-in field")
)

// ParseActor accepts "authenticated" (or "student") and "kiosk".
func ParseActor(s string) (Actor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authenticated", "student":
		return ActorAuthenticated, nil
	case "kiosk":
		return ActorKiosk, nil
	}
	return "", fmt.Errorf("actor %q: %w", s, ErrUnknownMode)
}

// ParseVerification accepts "face" and "qr".
func ParseVerification(s string) (Verification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "face":
		return VerificationFace, nil
	case "qr":
		return VerificationQR, nil
	}
	return "", fmt.Errorf("verification %q: %w", s, ErrUnknownMode)
}

// Input is everything a caller may supply. Each flow reads only its own fields.
type Input struct {
	SessionID string

	// QR, authenticated
	QRToken   string
	Latitude  *float64
	Longitude *float64

	// QR, kiosk
	StudentIDNumber string

	// face
	Image    io.Reader
	Filename string
}

// Plan is a fully determined check-in request.
type Plan struct {
	Actor        Actor
	Verification Verification
	Endpoint     endpoint.Endpoint
	Args         endpoint.Args
	Profile      apiclient.Profile
}

const defaultCaptureName = "capture.jpg"

// Select maps (actor, verification, input) to a plan. It performs no I/O.
//
// Kiosk QR plans carry the student identifier only; a QR token or location in
// the input is ignored. Kiosk face plans name the session in the path,
// authenticated face plans in the query.
func Select(actor Actor, v Verification, in Input) (Plan, error) {
	p := Plan{Actor: actor, Verification: v}
	if actor != ActorAuthenticated && actor != ActorKiosk {
		return p, fmt.Errorf("actor %q: %w", actor, ErrUnknownMode)
	}
	if v != VerificationFace && v != VerificationQR {
		return p, fmt.Errorf("verification %q: %w", v, ErrUnknownMode)
	}
	if in.SessionID == "" {
		return p, missing("session_id")
	}

	switch actor {
	case ActorAuthenticated:
		p.Profile = apiclient.ProfileAuthenticated
		switch v {
		case VerificationFace:
			if in.Image == nil {
				return p, missing("image")
			}
			p.Endpoint = endpoint.CheckInFace
			p.Args = endpoint.FaceArgs(filename(in), in.Image)
			p.Args.Query = url.Values{"session_id": {in.SessionID}}
			return p, nil
		case VerificationQR:
			if in.QRToken == "" {
				return p, missing("qr_token")
			}
			if (in.Latitude == nil) != (in.Longitude == nil) {
				return p, missing("latitude and longitude must be given together")
			}
			p.Endpoint = endpoint.CheckInQR
			p.Args = endpoint.Args{Body: endpoint.QRCheckIn{
				SessionID: in.SessionID,
				QRToken:   in.QRToken,
				Latitude:  in.Latitude,
				Longitude: in.Longitude,
			}}
			return p, nil
		}
	case ActorKiosk:
		p.Profile = apiclient.ProfileKiosk
		path := map[string]string{"session_id": in.SessionID}
		switch v {
		case VerificationFace:
			if in.Image == nil {
				return p, missing("image")
			}
			p.Endpoint = endpoint.KioskCheckIn
			p.Args = endpoint.FaceArgs(filename(in), in.Image)
			p.Args.Path = path
			return p, nil
		case VerificationQR:
			if in.StudentIDNumber == "" {
				return p, missing("student_id_number")
			}
			p.Endpoint = endpoint.KioskQRCheckIn
			p.Args = endpoint.Args{Path: path, Body: endpoint.KioskQR{StudentIDNumber: in.StudentIDNumber}}
			return p, nil
		}
	}
	return p, ErrUnknownMode
}

func missing(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

func filename(in Input) string {
	if in.Filename != "" {
		return in.Filename
	}
	return defaultCaptureName
}
