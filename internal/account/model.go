package account

import "time"

// User represents a registered account holder. Balance is stored in integer
// minor units (e.g. cents) so arithmetic never suffers floating-point drift.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash []byte
	Balance      int64
	Devices      []Device
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Device is a per-user trust record. A device starts unverified and becomes
// verified only through an admin action; trust is never revoked afterwards.
type Device struct {
	DeviceID   string
	Verified   bool
	VerifiedAt *time.Time
	LastLogin  *time.Time
	CreatedAt  time.Time
}

// FindDevice returns the trust record matching deviceID, if any.
func (u User) FindDevice(deviceID string) (Device, bool) {
	for _, d := range u.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// Stats aggregates account figures for the admin dashboard.
type Stats struct {
	TotalUsers     int
	ActiveUsers    int
	PendingDevices int
	TotalBalance   int64
}
