package fleet

// RemoteFile is one downloadable segment file on the fleet endpoint.
type RemoteFile struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
}

// RouteListing is the fleet endpoint's view of one recorded route.
type RouteListing struct {
	RouteID string       `json:"route_id"`
	Files   []RemoteFile `json:"files"`
}
