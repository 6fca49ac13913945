package network

import (
	"fmt"

	"energy-network/internal/element"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"
)

// Battery describes a battery split into energy bands. It expands into a
// junction named Name, one storage per band named "Name:band", an inverter
// connection from Bus, one connection per band and a balance connection
// between every pair of adjacent bands.
type Battery struct {
	Name     string
	Capacity float64
	Initial  float64
	// Thresholds split [0, Capacity] in kWh. Two thresholds give
	// undercharge, normal and overcharge bands.
	Thresholds []float64
	// Bus is the junction the inverter attaches to.
	Bus                 string
	MaxCharge           timeseries.Param
	MaxDischarge        timeseries.Param
	ChargeEfficiency    timeseries.Param
	DischargeEfficiency timeseries.Param
	// BandPrices is empty or has one entry per band.
	BandPrices []BandPrice
	// OrderingCost per level; zero means segment.DefaultOrderingCost.
	OrderingCost float64
}

// BandPrice prices energy moved into and out of one band, per kWh.
type BandPrice struct {
	Charge    timeseries.Param
	Discharge timeseries.Param
}

// InverterName is the connection between the bus and the battery junction.
func (b Battery) InverterName() string { return b.Name + ":inverter" }

// BandName is the storage element of one band.
func (b Battery) BandName(band string) string { return b.Name + ":" + band }

// BandNames lists the battery's storage elements, lowest band first.
func (b Battery) BandNames() ([]string, error) {
	bands, err := element.Partition(b.Capacity, b.Initial, b.Thresholds)
	if err != nil {
		return nil, classify(b.Name, err)
	}
	names := make([]string, len(bands))
	for i, band := range bands {
		names[i] = b.BandName(band.Name)
	}
	return names, nil
}

// Expand returns the elements and connections the battery stands for.
func (b Battery) Expand() ([]element.Element, []Connection, error) {
	bands, err := element.Partition(b.Capacity, b.Initial, b.Thresholds)
	if err != nil {
		return nil, nil, classify(b.Name, err)
	}
	if len(b.BandPrices) != 0 && len(b.BandPrices) != len(bands) {
		return nil, nil, &ValidationError{
			Kind: KindParameter,
			Name: b.Name,
			Err:  fmt.Errorf("%d band prices for %d bands", len(b.BandPrices), len(bands)),
		}
	}
	cost := b.OrderingCost
	if cost == 0 {
		cost = segment.DefaultOrderingCost
	}

	elements := []element.Element{element.Bus(b.Name)}
	conns := []Connection{{
		Name:   b.InverterName(),
		Source: b.Bus,
		Target: b.Name,
		Segments: []segment.Segment{
			segment.PowerLimit{MaxForward: b.MaxCharge, MaxReverse: b.MaxDischarge},
			segment.Efficiency{Forward: b.ChargeEfficiency, Reverse: b.DischargeEfficiency},
		},
	}}
	for i, band := range bands {
		name := b.BandName(band.Name)
		elements = append(elements, element.Storage{
			Name:     name,
			Capacity: timeseries.Scalar(band.Capacity()),
			Initial:  band.Initial,
		})
		c := Connection{Name: name + ":link", Source: b.Name, Target: name}
		if len(b.BandPrices) > 0 {
			c.Segments = []segment.Segment{segment.Pricing{
				Forward: b.BandPrices[i].Charge,
				Reverse: b.BandPrices[i].Discharge,
			}}
		}
		conns = append(conns, c)
		if i > 0 {
			conns = append(conns, Connection{
				Name:     name + ":balance",
				Source:   name,
				Target:   b.BandName(bands[i-1].Name),
				Segments: []segment.Segment{segment.BatteryBalance{OrderingCost: cost * float64(i)}},
			})
		}
	}
	return elements, conns, nil
}

// AddBattery expands b into the network.
func (n *Network) AddBattery(b Battery) error {
	elements, conns, err := b.Expand()
	if err != nil {
		return err
	}
	n.Elements = append(n.Elements, elements...)
	n.Connections = append(n.Connections, conns...)
	return nil
}
