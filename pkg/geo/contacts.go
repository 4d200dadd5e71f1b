package geo

import (
	"sort"
	"time"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
)

// Contact is an aircraft as seen from the observer.
type Contact struct {
	Aircraft adsb.Aircraft

	RangeNM  float64
	Bearing  float64
	Cardinal string

	// InProximity is true inside the alert radius
	InProximity bool

	// ETA is the estimated time until the aircraft enters the alert radius;
	// zero when already inside or not inbound
	ETA time.Duration
}

// Rank computes range and bearing for every aircraft with a position and
// returns them nearest first. proximityNM <= 0 disables proximity flags.
func Rank(observer Point, aircraft []adsb.Aircraft, proximityNM float64) []Contact {
	contacts := make([]Contact, 0, len(aircraft))
	for _, ac := range aircraft {
		if ac.Latitude == 0 && ac.Longitude == 0 {
			continue
		}
		pos := Point{Latitude: ac.Latitude, Longitude: ac.Longitude}
		c := Contact{
			Aircraft: ac,
			RangeNM:  DistanceNauticalMiles(observer, pos),
			Bearing:  Bearing(observer, pos),
		}
		c.Cardinal = Cardinal(c.Bearing)
		if proximityNM > 0 {
			c.InProximity = c.RangeNM <= proximityNM
			if !c.InProximity {
				c.ETA = TimeToRange(observer, pos, ac.GroundSpeed, ac.Heading, proximityNM)
			}
		}
		contacts = append(contacts, c)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].RangeNM < contacts[j].RangeNM
	})
	return contacts
}
