package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// detailFlags are the optional identity fields shared by enroll and update.
type detailFlags struct {
	email       string
	phone       string
	department  string
	accessLevel int
	photo       string
	extra       map[string]string
}

func (d *detailFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&d.email, "email", "", "Email address")
	fs.StringVar(&d.phone, "phone", "", "Phone number")
	fs.StringVar(&d.department, "department", "", "Department")
	fs.IntVar(&d.accessLevel, "access-level", 1, "Access level")
	fs.StringVar(&d.photo, "photo-path", "", "Reference photo path to store")
	fs.StringToStringVar(&d.extra, "extra", nil, "Extra details as key=value pairs")
}

// details returns only the fields set on the command line, and whether any was.
func (d *detailFlags) details(fs *pflag.FlagSet) (domain.IdentityDetails, bool) {
	var out domain.IdentityDetails
	set := false
	if fs.Changed("email") {
		out.Email, set = domain.Ptr(d.email), true
	}
	if fs.Changed("phone") {
		out.Phone, set = domain.Ptr(d.phone), true
	}
	if fs.Changed("department") {
		out.Department, set = domain.Ptr(d.department), true
	}
	if fs.Changed("access-level") {
		out.AccessLevel, set = domain.Ptr(d.accessLevel), true
	}
	if fs.Changed("photo-path") {
		out.PhotoPath, set = domain.Ptr(d.photo), true
	}
	if fs.Changed("extra") && len(d.extra) > 0 {
		out.Extra, set = d.extra, true
	}
	return out, set
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid identity id %q: %w", arg, err)
	}
	return id, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

// parseBound reads a time range bound in local time. A bare date used as the
// end of a range covers the whole day.
func parseBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err != nil {
			continue
		}
		if end && layout == "2006-01-02" {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339 or YYYY-MM-DD[ HH:MM[:SS]])", s)
}
