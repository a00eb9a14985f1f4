package model

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrTrainNotFound   = errors.New("train not found")
	ErrRouteNotFound   = errors.New("route not found")
	ErrStationNotFound = errors.New("station not found")
)

// Network holds the route/station/section reference data plus the
// registered trains. Reference data is read-only after load.
type Network struct {
	trains   map[string]*Train
	routes   map[string]*Route
	stations map[string]*Station
	sections map[string]*Section
}

// networkFile is the on-disk YAML shape of the reference data.
type networkFile struct {
	Trains   []*Train   `yaml:"trains" validate:"dive"`
	Routes   []*Route   `yaml:"routes" validate:"required,min=1,dive"`
	Stations []*Station `yaml:"stations" validate:"required,min=1,dive"`
	Sections []*Section `yaml:"sections" validate:"dive"`
}

// NewNetwork builds a network from already-constructed reference data.
func NewNetwork(trains []*Train, routes []*Route, stations []*Station, sections []*Section) *Network {
	n := &Network{
		trains:   map[string]*Train{},
		routes:   map[string]*Route{},
		stations: map[string]*Station{},
		sections: map[string]*Section{},
	}
	for _, t := range trains {
		n.trains[t.ID] = t
	}
	for _, r := range routes {
		n.routes[r.ID] = r
	}
	for _, s := range stations {
		n.stations[s.Code] = s
	}
	for _, s := range sections {
		n.sections[s.ID] = s
	}
	return n
}

// LoadNetwork reads and validates a reference-data YAML file.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}
	var nf networkFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return nil, fmt.Errorf("parse network file: %w", err)
	}
	v := validator.New()
	if err := v.Struct(nf); err != nil {
		return nil, fmt.Errorf("validate network file: %w", err)
	}
	for _, t := range nf.Trains {
		if _, ok := findRoute(nf.Routes, t.RouteID); !ok {
			return nil, fmt.Errorf("train %s references %s: %w", t.ID, t.RouteID, ErrRouteNotFound)
		}
	}
	return NewNetwork(nf.Trains, nf.Routes, nf.Stations, nf.Sections), nil
}

func findRoute(routes []*Route, id string) (*Route, bool) {
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Train looks up a registered train by identifier.
func (n *Network) Train(id string) (*Train, error) {
	t, ok := n.trains[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrTrainNotFound)
	}
	return t, nil
}

// Route looks up a route by identifier.
func (n *Network) Route(id string) (*Route, error) {
	r, ok := n.routes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrRouteNotFound)
	}
	return r, nil
}

// Station looks up a station by code.
func (n *Network) Station(code string) (*Station, error) {
	s, ok := n.stations[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", code, ErrStationNotFound)
	}
	return s, nil
}

// Section looks up a track section by identifier.
func (n *Network) Section(id string) (*Section, bool) {
	s, ok := n.sections[id]
	return s, ok
}

// Trains returns all registered trains in identifier order.
func (n *Network) Trains() []*Train {
	out := make([]*Train, 0, len(n.trains))
	for _, t := range n.trains {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stations returns all stations on the network in code order.
func (n *Network) Stations() []*Station {
	out := make([]*Station, 0, len(n.stations))
	for _, s := range n.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// RouteWaypoints returns the [lat,lon] station coordinates of a route in
// path order, skipping stations without a known location.
func (n *Network) RouteWaypoints(routeID string) [][2]float64 {
	r, ok := n.routes[routeID]
	if !ok {
		return nil
	}
	pts := make([][2]float64, 0, len(r.Stations))
	for _, rs := range r.Stations {
		st, ok := n.stations[rs.Code]
		if !ok {
			continue
		}
		pts = append(pts, [2]float64{st.Lat, st.Lon})
	}
	return pts
}

// RegisterTrain adds a train at runtime; its type must be known and its
// route must exist.
func (n *Network) RegisterTrain(t *Train) error {
	if !t.Type.Valid() {
		return fmt.Errorf("train %s: unknown type %q", t.ID, t.Type)
	}
	if _, ok := n.routes[t.RouteID]; !ok {
		return fmt.Errorf("%s: %w", t.RouteID, ErrRouteNotFound)
	}
	n.trains[t.ID] = t
	return nil
}
