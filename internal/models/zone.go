package models

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// WorkZone is a circular or polygonal area inside a branch. Polygon takes
// precedence over the circle when both are configured.
type WorkZone struct {
	ID                    string       `json:"id"`
	BranchID              string       `json:"branch_id"`
	Name                  string       `json:"name"`
	Center                *Coordinate  `json:"center"`
	RadiusMeters          float64      `json:"radius_meters"`
	Polygon               []Coordinate `json:"polygon_coordinates"`
	AllowedEmployeeIDs    []string     `json:"allowed_employee_ids"`
	AllowedDepartmentIDs  []string     `json:"allowed_department_ids"`
	AllowedDesignationIDs []string     `json:"allowed_designation_ids"`
	DisplayOrder          int          `json:"display_order"`
	IsActive              bool         `json:"is_active"`
}
