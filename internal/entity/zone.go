package entity

type Zone struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Location        string `json:"location" yaml:"location"`
	CameraSourceURL string `json:"cameraSourceUrl,omitempty" yaml:"camera_source_url"`
}

// UsesLocalDevice reports whether the zone is watched by the local capture device
// rather than a remote stream.
func (z Zone) UsesLocalDevice() bool {
	return z.CameraSourceURL == ""
}

func DefaultZones() []Zone {
	return []Zone{
		{ID: "zone1", Name: "Zone A", Location: "East Sector"},
		{ID: "zone2", Name: "Zone B", Location: "West Sector"},
		{ID: "zone3", Name: "Zone C", Location: "North Sector"},
		{ID: "zone4", Name: "Zone D", Location: "South Sector"},
	}
}
