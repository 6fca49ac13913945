package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"energy-network/internal/timeseries"

	"gopkg.in/yaml.v3"
)

// ErrUnknownForecast is returned when a parameter references a forecast the
// configuration does not define.
var ErrUnknownForecast = errors.New("config: unknown forecast")

// ParamValue is a parameter as written in a configuration file: a number, a
// list with one value per period, or "@name" referencing a forecast.
type ParamValue struct {
	scalar *float64
	values []float64
	ref    string
}

func Number(v float64) ParamValue { return ParamValue{scalar: &v} }

func List(vs ...float64) ParamValue {
	return ParamValue{values: append([]float64(nil), vs...)}
}

func Ref(forecast string) ParamValue { return ParamValue{ref: forecast} }

func (v ParamValue) IsSet() bool { return v.scalar != nil || v.values != nil || v.ref != "" }

// IsZero lets yaml omitempty skip unset parameters.
func (v ParamValue) IsZero() bool { return !v.IsSet() }

// Forecast is the referenced forecast name, or "".
func (v ParamValue) Forecast() string { return v.ref }

// Param resolves the value against the named forecasts.
func (v ParamValue) Param(forecasts map[string]timeseries.Series) (timeseries.Param, error) {
	switch {
	case v.ref != "":
		s, ok := forecasts[v.ref]
		if !ok {
			return timeseries.Param{}, fmt.Errorf("%w: %q", ErrUnknownForecast, v.ref)
		}
		return timeseries.FromSeries(s), nil
	case v.values != nil:
		return timeseries.Values(v.values...), nil
	case v.scalar != nil:
		return timeseries.Scalar(*v.scalar), nil
	}
	return timeseries.Param{}, nil
}

func (v ParamValue) String() string {
	switch {
	case v.ref != "":
		return "@" + v.ref
	case v.values != nil:
		return fmt.Sprint(v.values)
	case v.scalar != nil:
		return fmt.Sprint(*v.scalar)
	}
	return "unset"
}

func parseRef(s string) (ParamValue, error) {
	name, ok := strings.CutPrefix(s, "@")
	if !ok || name == "" {
		return ParamValue{}, fmt.Errorf("parameter %q: want a number, a list or @forecast", s)
	}
	return Ref(name), nil
}

func (v *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*v = List(vs...)
		return nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			*v = ParamValue{}
			return nil
		case "!!str":
			ref, err := parseRef(node.Value)
			if err != nil {
				return err
			}
			*v = ref
			return nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Number(f)
		return nil
	}
	return fmt.Errorf("line %d: parameter must be a number, a list or @forecast", node.Line)
}

func (v ParamValue) MarshalYAML() (any, error) {
	switch {
	case v.ref != "":
		return "@" + v.ref, nil
	case v.values != nil:
		return v.values, nil
	case v.scalar != nil:
		return *v.scalar, nil
	}
	return nil, nil
}

func (v *ParamValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = ParamValue{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		ref, err := parseRef(s)
		if err != nil {
			return err
		}
		*v = ref
		return nil
	case '[':
		var vs []float64
		if err := json.Unmarshal(b, &vs); err != nil {
			return err
		}
		*v = List(vs...)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parameter must be a number, a list or @forecast: %w", err)
	}
	*v = Number(f)
	return nil
}

func (v ParamValue) MarshalJSON() ([]byte, error) {
	out, _ := v.MarshalYAML()
	return json.Marshal(out)
}

// Duration is a time.Duration written as "30m" or "1h30m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
