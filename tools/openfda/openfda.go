// Package openfda provides tools for the FDA openFDA drug APIs.
package openfda

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/tools", "openfda")

const (
	ToolDrugLabel     = "fda_drug_label"
	ToolAdverseEvents = "fda_adverse_events"
	ToolDrugRecalls   = "fda_drug_recalls"
)

const (
	DefaultBaseURL = "https://api.fda.gov"
	DefaultTTL     = 24 * time.Hour

	// maxSectionLen limits long label sections like warnings
	maxSectionLen = 2000
)

// Provider implements the openFDA tools
type Provider struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
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

// WithAPIKey sets the optional API key for higher limits
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
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
		client:  client,
		baseURL: DefaultBaseURL,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tools returns the openFDA tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolDrugLabel,
		"Returns FDA drug label sections like indications, warnings and dosage by brand or generic name.",
		p.DrugLabel, tools.WithCache(p.cache, ToolDrugLabel, p.ttl)))
	b.Add(tools.NewBase(ToolAdverseEvents,
		"Returns FDA adverse event reports for a drug, or counts by a field like patient.reaction.reactionmeddrapt.exact.",
		p.AdverseEvents, tools.WithCache(p.cache, ToolAdverseEvents, p.ttl)))
	b.Add(tools.NewBase(ToolDrugRecalls,
		"Returns FDA drug recall enforcement reports by product description, classification and status.",
		p.DrugRecalls, tools.WithCache(p.cache, ToolDrugRecalls, p.ttl)))
	return b.Tools()
}

// Phrase returns the quoted search phrase
func Phrase(field, value string) string {
	return field + `:"` + strings.ReplaceAll(value, `"`, ``) + `"`
}

// query returns the results of the endpoint, and false when nothing matches
func (p *Provider) query(ctx context.Context, endpoint string, q url.Values) (gjson.Result, bool, error) {
	if p.apiKey != "" {
		q.Set("api_key", p.apiKey)
	}
	body, err := p.client.Get(ctx, p.baseURL+endpoint, q, map[string]string{"Accept": "application/json"})
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound &&
			gjson.GetBytes(se.Body, "error.code").String() == "NOT_FOUND" {
			logger.ContextKV(ctx, xlog.DEBUG, "status", "no_matches", "endpoint", endpoint, "search", q.Get("search"))
			return gjson.Result{}, false, nil
		}
		return gjson.Result{}, false, errors.Wrapf(err, "failed to query openFDA %s", endpoint)
	}
	return gjson.ParseBytes(body), true, nil
}

// DrugLabelRequest is the input of fda_drug_label
type DrugLabelRequest struct {
	Drug  string `json:"drug" jsonschema:"title=Drug,description=Brand or generic drug name like ibuprofen." validate:"required"`
	Limit int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum labels; defaults to 3." validate:"gte=0,lte=20"`
}

// Label is the drug label summary
type Label struct {
	ID                string   `json:"id"`
	BrandNames        []string `json:"brand_names"`
	GenericNames      []string `json:"generic_names"`
	Manufacturers     []string `json:"manufacturers"`
	Routes            []string `json:"routes,omitempty"`
	Indications       string   `json:"indications_and_usage,omitempty"`
	BoxedWarning      string   `json:"boxed_warning,omitempty"`
	Warnings          string   `json:"warnings,omitempty"`
	Contraindications string   `json:"contraindications,omitempty"`
	Dosage            string   `json:"dosage_and_administration,omitempty"`
	AdverseReactions  string   `json:"adverse_reactions,omitempty"`
	EffectiveTime     string   `json:"effective_time,omitempty"`
}

// DrugLabelResult is the output of fda_drug_label
type DrugLabelResult struct {
	Drug   string  `json:"drug"`
	Total  int     `json:"total"`
	Labels []Label `json:"labels"`
	Count  int     `json:"count"`
}

// DrugLabel returns labels matched by brand or generic name
func (p *Provider) DrugLabel(ctx context.Context, req *DrugLabelRequest) (*DrugLabelResult, error) {
	q := url.Values{}
	q.Set("search", Phrase("openfda.brand_name", req.Drug)+" "+Phrase("openfda.generic_name", req.Drug))
	q.Set("limit", strconv.Itoa(values.NumbersCoalesce(req.Limit, 3)))

	res := &DrugLabelResult{Drug: req.Drug, Labels: []Label{}}
	doc, found, err := p.query(ctx, "/drug/label.json", q)
	if err != nil || !found {
		return res, err
	}

	res.Total = int(doc.Get("meta.results.total").Int())
	for _, r := range doc.Get("results").Array() {
		res.Labels = append(res.Labels, Label{
			ID:                r.Get("id").String(),
			BrandNames:        stringArray(r.Get("openfda.brand_name")),
			GenericNames:      stringArray(r.Get("openfda.generic_name")),
			Manufacturers:     stringArray(r.Get("openfda.manufacturer_name")),
			Routes:            stringArray(r.Get("openfda.route")),
			Indications:       section(r, "indications_and_usage"),
			BoxedWarning:      section(r, "boxed_warning"),
			Warnings:          values.StringsCoalesce(section(r, "warnings"), section(r, "warnings_and_cautions")),
			Contraindications: section(r, "contraindications"),
			Dosage:            section(r, "dosage_and_administration"),
			AdverseReactions:  section(r, "adverse_reactions"),
			EffectiveTime:     r.Get("effective_time").String(),
		})
	}
	res.Count = len(res.Labels)
	return res, nil
}

func stringArray(r gjson.Result) []string {
	list := []string{}
	for _, v := range r.Array() {
		list = append(list, v.String())
	}
	return list
}

func section(r gjson.Result, name string) string {
	parts := stringArray(r.Get(name))
	return llmutils.StringUpto(strings.TrimSpace(strings.Join(parts, "\n")), maxSectionLen)
}

// AdverseEventsRequest is the input of fda_adverse_events
type AdverseEventsRequest struct {
	Drug       string `json:"drug" jsonschema:"title=Drug,description=Drug name as reported like aspirin." validate:"required"`
	Limit      int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum reports or count terms; defaults to 10." validate:"gte=0,lte=100"`
	CountField string `json:"count_field,omitempty" jsonschema:"title=Count Field,description=Optional field to count like patient.reaction.reactionmeddrapt.exact."`
	Serious    bool   `json:"serious,omitempty" jsonschema:"title=Serious,description=Only serious reports."`
}

var countFieldRE = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// Validate returns error for invalid count field
func (r *AdverseEventsRequest) Validate() error {
	if r.CountField != "" && !countFieldRE.MatchString(r.CountField) {
		return errors.Newf("invalid count_field %q: expected dotted field name like patient.reaction.reactionmeddrapt.exact", r.CountField)
	}
	return nil
}

// Event is the adverse event report
type Event struct {
	ReportID   string   `json:"report_id"`
	ReceivedAt string   `json:"received_date"`
	Serious    bool     `json:"serious"`
	Reactions  []string `json:"reactions"`
	Drugs      []string `json:"drugs"`
	Country    string   `json:"country,omitempty"`
	PatientSex string   `json:"patient_sex,omitempty"`
	PatientAge string   `json:"patient_age,omitempty"`
	Death      bool     `json:"death,omitempty"`
}

// TermCount is the count of the field value
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// AdverseEventsResult is the output of fda_adverse_events
type AdverseEventsResult struct {
	Drug   string      `json:"drug"`
	Total  int         `json:"total"`
	Events []Event     `json:"events,omitempty"`
	Counts []TermCount `json:"counts,omitempty"`
	Count  int         `json:"count"`
}

// AdverseEvents returns the reports, or the term counts when count field is set
func (p *Provider) AdverseEvents(ctx context.Context, req *AdverseEventsRequest) (*AdverseEventsResult, error) {
	search := Phrase("patient.drug.medicinalproduct", req.Drug)
	if req.Serious {
		search += " AND serious:1"
	}
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(values.NumbersCoalesce(req.Limit, 10)))
	if req.CountField != "" {
		q.Set("count", req.CountField)
	}

	res := &AdverseEventsResult{Drug: req.Drug}
	doc, found, err := p.query(ctx, "/drug/event.json", q)
	if err != nil || !found {
		return res, err
	}

	res.Total = int(doc.Get("meta.results.total").Int())
	if req.CountField != "" {
		res.Counts = []TermCount{}
		for _, r := range doc.Get("results").Array() {
			res.Counts = append(res.Counts, TermCount{Term: r.Get("term").String(), Count: int(r.Get("count").Int())})
		}
		res.Count = len(res.Counts)
		return res, nil
	}

	res.Events = []Event{}
	for _, r := range doc.Get("results").Array() {
		ev := Event{
			ReportID:    r.Get("safetyreportid").String(),
			ReceivedAt:  r.Get("receivedate").String(),
			Serious:     r.Get("serious").String() == "1",
			Country:     r.Get("occurcountry").String(),
			PatientSex:  sex(r.Get("patient.patientsex").String()),
			PatientAge:  r.Get("patient.patientonsetage").String(),
			Death:       r.Get("seriousnessdeath").String() == "1",
			Reactions:   stringArray(r.Get("patient.reaction.#.reactionmeddrapt")),
			Drugs:       stringArray(r.Get("patient.drug.#.medicinalproduct")),
		}
		res.Events = append(res.Events, ev)
	}
	res.Count = len(res.Events)
	return res, nil
}

func sex(code string) string {
	switch code {
	case "1":
		return "male"
	case "2":
		return "female"
	}
	return ""
}

// DrugRecallsRequest is the input of fda_drug_recalls
type DrugRecallsRequest struct {
	Product        string `json:"product" jsonschema:"title=Product,description=Term in the product description like metformin." validate:"required"`
	Classification string `json:"classification,omitempty" jsonschema:"title=Classification,description=Optional recall class: Class I or Class II or Class III." validate:"omitempty,oneof='Class I' 'Class II' 'Class III'"`
	Status         string `json:"status,omitempty" jsonschema:"title=Status,description=Optional status: Ongoing or Completed or Terminated." validate:"omitempty,oneof=Ongoing Completed Terminated"`
	Limit          int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum recalls; defaults to 10." validate:"gte=0,lte=100"`
}

// Recall is the enforcement report
type Recall struct {
	RecallNumber   string `json:"recall_number"`
	Status         string `json:"status"`
	Classification string `json:"classification"`
	Product        string `json:"product_description"`
	Reason         string `json:"reason_for_recall"`
	Firm           string `json:"recalling_firm"`
	InitiatedOn    string `json:"recall_initiation_date,omitempty"`
	ReportedOn     string `json:"report_date,omitempty"`
	Distribution   string `json:"distribution_pattern,omitempty"`
}

// DrugRecallsResult is the output of fda_drug_recalls
type DrugRecallsResult struct {
	Product string   `json:"product"`
	Total   int      `json:"total"`
	Recalls []Recall `json:"recalls"`
	Count   int      `json:"count"`
}

// DrugRecalls returns the enforcement reports, newest first
func (p *Provider) DrugRecalls(ctx context.Context, req *DrugRecallsRequest) (*DrugRecallsResult, error) {
	terms := []string{Phrase("product_description", req.Product)}
	if req.Classification != "" {
		terms = append(terms, Phrase("classification", req.Classification))
	}
	if req.Status != "" {
		terms = append(terms, Phrase("status", req.Status))
	}
	q := url.Values{}
	q.Set("search", strings.Join(terms, " AND "))
	q.Set("limit", strconv.Itoa(values.NumbersCoalesce(req.Limit, 10)))
	q.Set("sort", "report_date:desc")

	res := &DrugRecallsResult{Product: req.Product, Recalls: []Recall{}}
	doc, found, err := p.query(ctx, "/drug/enforcement.json", q)
	if err != nil || !found {
		return res, err
	}

	res.Total = int(doc.Get("meta.results.total").Int())
	for _, r := range doc.Get("results").Array() {
		res.Recalls = append(res.Recalls, Recall{
			RecallNumber:   r.Get("recall_number").String(),
			Status:         r.Get("status").String(),
			Classification: r.Get("classification").String(),
			Product:        llmutils.StringUpto(r.Get("product_description").String(), maxSectionLen),
			Reason:         r.Get("reason_for_recall").String(),
			Firm:           r.Get("recalling_firm").String(),
			InitiatedOn:    r.Get("recall_initiation_date").String(),
			ReportedOn:     r.Get("report_date").String(),
			Distribution:   r.Get("distribution_pattern").String(),
		})
	}
	res.Count = len(res.Recalls)
	return res, nil
}
