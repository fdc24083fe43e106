// Package weather provides tools for the OpenWeatherMap API.
package weather

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const (
	ToolCurrent  = "weather_current"
	ToolForecast = "weather_forecast"
	ToolGeocode  = "weather_geocode"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	DefaultUnits   = "metric"
	DefaultTTL     = 10 * time.Minute
	attempts       = 3
)

// Provider implements the OpenWeatherMap tools
type Provider struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	units   string
	cache   cache.Cache
	ttl     time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithAPIKey sets the API key
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithUnits sets the default units
func WithUnits(units string) Option {
	return func(p *Provider) {
		if units != "" {
			p.units = units
		}
	}
}

// WithCache enables the results cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = c
		p.ttl = ttl
	}
}

// New returns the provider
func New(client *httpclient.Client, opts ...Option) *Provider {
	p := &Provider{
		baseURL: DefaultBaseURL,
		units:   DefaultUnits,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = client.With(httpclient.WithRetries(attempts))
	return p
}

// Tools returns the weather tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolCurrent,
		"Returns current weather for a city or coordinates.",
		p.Current, tools.WithCache(p.cache, ToolCurrent, p.ttl)))
	b.Add(tools.NewBase(ToolForecast,
		"Returns 5 day weather forecast summarized per day with min and max temperature and dominant condition.",
		p.Forecast, tools.WithCache(p.cache, ToolForecast, p.ttl)))
	b.Add(tools.NewBase(ToolGeocode,
		"Returns coordinates of a city name, optionally with state and country code like London,GB.",
		p.Geocode, tools.WithCache(p.cache, ToolGeocode, p.ttl)))
	return b.Tools()
}

// Location is the input of weather queries
type Location struct {
	City  string   `json:"city,omitempty" jsonschema:"title=City,description=City name optionally with country code like Paris,FR."`
	Lat   *float64 `json:"lat,omitempty" jsonschema:"title=Latitude,description=Latitude when city is not specified." validate:"omitempty,latitude"`
	Lon   *float64 `json:"lon,omitempty" jsonschema:"title=Longitude,description=Longitude when city is not specified." validate:"omitempty,longitude"`
	Units string   `json:"units,omitempty" jsonschema:"title=Units,description=metric or imperial or standard." validate:"omitempty,oneof=metric imperial standard"`
	Lang  string   `json:"lang,omitempty" jsonschema:"title=Language,description=Optional language code of descriptions like en or fr."`
}

// Validate returns error when location is not specified
func (l *Location) Validate() error {
	if l.City == "" && (l.Lat == nil || l.Lon == nil) {
		return errors.New("city or lat and lon must be specified")
	}
	return nil
}

func (p *Provider) query(l *Location) (url.Values, error) {
	if p.apiKey == "" {
		return nil, tools.NotConfigured("OpenWeatherMap API key is not configured: set OPENWEATHER_API_KEY")
	}
	q := url.Values{}
	q.Set("appid", p.apiKey)
	if l == nil {
		return q, nil
	}
	if l.City != "" {
		q.Set("q", l.City)
	} else {
		q.Set("lat", strconv.FormatFloat(*l.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(*l.Lon, 'f', -1, 64))
	}
	q.Set("units", values.StringsCoalesce(l.Units, p.units))
	if l.Lang != "" {
		q.Set("lang", l.Lang)
	}
	return q, nil
}

type condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type measurements struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

type wind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

type currentResponse struct {
	Name    string       `json:"name"`
	Coord   Coordinates  `json:"coord"`
	Weather []condition  `json:"weather"`
	Main    measurements `json:"main"`
	Wind    wind         `json:"wind"`
	Clouds  struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Visibility int   `json:"visibility"`
	Dt         int64 `json:"dt"`
	Timezone   int   `json:"timezone"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

// Coordinates of the location
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CurrentResult is the output of weather_current
type CurrentResult struct {
	Location    string      `json:"location"`
	Country     string      `json:"country,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
	Units       string      `json:"units"`
	Condition   string      `json:"condition"`
	Description string      `json:"description"`
	Temperature float64     `json:"temperature"`
	FeelsLike   float64     `json:"feels_like"`
	TempMin     float64     `json:"temp_min"`
	TempMax     float64     `json:"temp_max"`
	Humidity    float64     `json:"humidity"`
	Pressure    float64     `json:"pressure"`
	WindSpeed   float64     `json:"wind_speed"`
	WindDeg     float64     `json:"wind_deg"`
	Clouds      float64     `json:"clouds"`
	Visibility  int         `json:"visibility,omitempty"`
	ObservedAt  time.Time   `json:"observed_at"`
	Sunrise     *time.Time  `json:"sunrise,omitempty"`
	Sunset      *time.Time  `json:"sunset,omitempty"`
}

// Current returns the current weather
func (p *Provider) Current(ctx context.Context, req *Location) (*CurrentResult, error) {
	q, err := p.query(req)
	if err != nil {
		return nil, err
	}

	var r currentResponse
	if err = p.client.GetJSON(ctx, p.baseURL+"/data/2.5/weather", q, nil, &r); err != nil {
		return nil, errors.Wrap(err, "failed to get current weather")
	}

	res := &CurrentResult{
		Location:    r.Name,
		Country:     r.Sys.Country,
		Coordinates: r.Coord,
		Units:       q.Get("units"),
		Temperature: r.Main.Temp,
		FeelsLike:   r.Main.FeelsLike,
		TempMin:     r.Main.TempMin,
		TempMax:     r.Main.TempMax,
		Humidity:    r.Main.Humidity,
		Pressure:    r.Main.Pressure,
		WindSpeed:   r.Wind.Speed,
		WindDeg:     r.Wind.Deg,
		Clouds:      r.Clouds.All,
		Visibility:  r.Visibility,
		ObservedAt:  time.Unix(r.Dt, 0).UTC(),
		Sunrise:     unixTime(r.Sys.Sunrise),
		Sunset:      unixTime(r.Sys.Sunset),
	}
	if len(r.Weather) > 0 {
		res.Condition = r.Weather[0].Main
		res.Description = r.Weather[0].Description
	}
	return res, nil
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

type forecastResponse struct {
	List []struct {
		Dt      int64        `json:"dt"`
		Main    measurements `json:"main"`
		Weather []condition  `json:"weather"`
		Wind    wind         `json:"wind"`
		Pop     float64      `json:"pop"`
	} `json:"list"`
	City struct {
		Name     string      `json:"name"`
		Country  string      `json:"country"`
		Coord    Coordinates `json:"coord"`
		Timezone int         `json:"timezone"`
	} `json:"city"`
}

// DayForecast is the forecast summary of a day
type DayForecast struct {
	Date        string  `json:"date"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity_avg"`
	WindMax     float64 `json:"wind_speed_max"`
	PrecipProb  float64 `json:"precipitation_probability_max"`
	Periods     int     `json:"periods"`
}

// ForecastResult is the output of weather_forecast
type ForecastResult struct {
	Location    string        `json:"location"`
	Country     string        `json:"country,omitempty"`
	Coordinates Coordinates   `json:"coordinates"`
	Units       string        `json:"units"`
	Days        []DayForecast `json:"days"`
}

// Forecast returns 5 day / 3 hour forecast summarized per local day
func (p *Provider) Forecast(ctx context.Context, req *Location) (*ForecastResult, error) {
	q, err := p.query(req)
	if err != nil {
		return nil, err
	}

	var r forecastResponse
	if err = p.client.GetJSON(ctx, p.baseURL+"/data/2.5/forecast", q, nil, &r); err != nil {
		return nil, errors.Wrap(err, "failed to get weather forecast")
	}

	tz := time.FixedZone("local", r.City.Timezone)
	type acc struct {
		day        *DayForecast
		humidity   float64
		conditions map[string]int
		order      []string
		desc       map[string]string
	}
	days := map[string]*acc{}
	var dates []string

	for _, item := range r.List {
		date := time.Unix(item.Dt, 0).In(tz).Format(time.DateOnly)
		a := days[date]
		if a == nil {
			a = &acc{
				day: &DayForecast{
					Date:    date,
					TempMin: item.Main.TempMin,
					TempMax: item.Main.TempMax,
				},
				conditions: map[string]int{},
				desc:       map[string]string{},
			}
			days[date] = a
			dates = append(dates, date)
		}
		d := a.day
		d.Periods++
		d.TempMin = min(d.TempMin, item.Main.TempMin)
		d.TempMax = max(d.TempMax, item.Main.TempMax)
		d.WindMax = max(d.WindMax, item.Wind.Speed)
		d.PrecipProb = max(d.PrecipProb, item.Pop)
		a.humidity += item.Main.Humidity
		if len(item.Weather) > 0 {
			c := item.Weather[0]
			if _, ok := a.conditions[c.Main]; !ok {
				a.order = append(a.order, c.Main)
				a.desc[c.Main] = c.Description
			}
			a.conditions[c.Main]++
		}
	}

	sort.Strings(dates)
	res := &ForecastResult{
		Location:    r.City.Name,
		Country:     r.City.Country,
		Coordinates: r.City.Coord,
		Units:       q.Get("units"),
		Days:        make([]DayForecast, 0, len(dates)),
	}
	for _, date := range dates {
		a := days[date]
		d := a.day
		d.Humidity = round(a.humidity/float64(d.Periods), 1)
		// ties keep the earliest condition of the day
		best := 0
		for _, c := range a.order {
			if a.conditions[c] > best {
				best = a.conditions[c]
				d.Condition = c
				d.Description = a.desc[c]
			}
		}
		res.Days = append(res.Days, *d)
	}
	return res, nil
}

func round(v float64, digits int) float64 {
	m := math.Pow(10, float64(digits))
	return math.Round(v*m) / m
}

// GeocodeRequest is the input of weather_geocode
type GeocodeRequest struct {
	City  string `json:"city" jsonschema:"title=City,description=City name optionally with state and country code like Springfield,IL,US." validate:"required"`
	Limit int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum matches; defaults to 5." validate:"gte=0,lte=5"`
}

// Place is geocoded location
type Place struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// GeocodeResult is the output of weather_geocode
type GeocodeResult struct {
	Query  string  `json:"query"`
	Places []Place `json:"places"`
	Count  int     `json:"count"`
}

// Geocode returns the coordinates of the city
func (p *Provider) Geocode(ctx context.Context, req *GeocodeRequest) (*GeocodeResult, error) {
	q, err := p.query(nil)
	if err != nil {
		return nil, err
	}
	q.Set("q", req.City)
	q.Set("limit", strconv.Itoa(values.NumbersCoalesce(req.Limit, 5)))

	var places []Place
	if err = p.client.GetJSON(ctx, p.baseURL+"/geo/1.0/direct", q, nil, &places); err != nil {
		return nil, errors.Wrap(err, "failed to geocode location")
	}
	if places == nil {
		places = []Place{}
	}
	return &GeocodeResult{
		Query:  req.City,
		Places: places,
		Count:  len(places),
	}, nil
}
