package erapi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/config"
	apperrors "github.com/erboard/backend/pkg/errors"
	"github.com/erboard/backend/pkg/retry"
	"github.com/erboard/backend/pkg/utils"
)

const (
	pathRealtimeBeds = "getEmrrmRltmUsefulSckbdInfoInqire"
	pathBasicInfo    = "getEgytBassInfoInqire"
	pathMessages     = "getEmrrmSrsillDissMsgInqire"

	resultCodeOK = "00"
)

// Client talks to the national ER information service.
type Client struct {
	http       *resty.Client
	breaker    *gobreaker.CircuitBreaker
	serviceKey string
	retryCfg   retry.Config
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewClient creates an ER API client. metrics may be nil.
func NewClient(cfg *config.ERAPIConfig, metrics *observability.Metrics) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/xml")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "er-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("ER API circuit breaker changed state")
		},
	})

	attempts := cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		http:       httpClient,
		breaker:    breaker,
		serviceKey: cfg.ServiceKey,
		retryCfg: retry.Config{
			MaxAttempts:     attempts,
			InitialDelay:    200 * time.Millisecond,
			MaxDelay:        2 * time.Second,
			BackoffFactor:   2.0,
			MaxTotalTimeout: cfg.Timeout * time.Duration(attempts),
		},
		metrics: metrics,
		now:     time.Now,
	}
}

var _ providers.ERDataProvider = (*Client)(nil)

type envelope struct {
	XMLName xml.Name `xml:"response"`
	Header  struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []item `xml:"item"`
		} `xml:"items"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
}

// item holds the flat child elements of one <item> by tag name.
type item map[string]string

func (it *item) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	m := item{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			m[t.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			*it = m
			return nil
		}
	}
}

// first returns the first non-empty value among keys.
func (it item) first(keys ...string) string {
	for _, k := range keys {
		if v := it[k]; v != "" {
			return v
		}
	}
	return ""
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected HTTP status " + strconv.Itoa(e.code)
}

// get performs one call and returns its items. Transport failures and 5xx
// responses are retried; everything else fails immediately.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]item, error) {
	query := make(map[string]string, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	query["serviceKey"] = c.serviceKey

	var body []byte
	call := func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := c.http.R().
				SetContext(ctx).
				SetQueryParams(query).
				Get("/" + path)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() >= http.StatusInternalServerError {
				return nil, &statusError{code: resp.StatusCode()}
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, retry.Permanent(&statusError{code: resp.StatusCode()})
			}
			return resp.Body(), nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Permanent(err)
			}
			return err
		}
		body = out.([]byte)
		return nil
	}

	err := retry.DoWithLog(ctx, c.retryCfg, path, call, func(attempt int, err error, next time.Duration) {
		log.Ctx(ctx).Debug().Err(err).Str("endpoint", path).Int("attempt", attempt).Dur("retry_in", next).Msg("ER API call failed, retrying")
	})
	if err != nil {
		observability.RecordUpstreamFailure(ctx, c.metrics, path)
		return nil, apperrors.NewExternalError(fmt.Sprintf("ER API %s request failed", path), err)
	}

	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		observability.RecordUpstreamFailure(ctx, c.metrics, path)
		return nil, apperrors.NewExternalError(fmt.Sprintf("ER API %s returned malformed XML", path), err)
	}
	if code := strings.TrimSpace(env.Header.ResultCode); code != resultCodeOK {
		observability.RecordUpstreamFailure(ctx, c.metrics, path)
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("ER API %s returned result code %q: %s", path, code, env.Header.ResultMsg), nil)
	}
	return env.Body.Items.Item, nil
}

// FetchRegion returns the real-time bed readings of one (sido, sigungu) pair.
// Items without an hpid are dropped.
func (c *Client) FetchRegion(ctx context.Context, region entities.RegionPair) ([]*entities.StagingReading, error) {
	items, err := c.get(ctx, pathRealtimeBeds, map[string]string{
		"STAGE1":    region.Sido,
		"STAGE2":    region.Sigungu,
		"pageNo":    "1",
		"numOfRows": "200",
	})
	if err != nil {
		return nil, err
	}

	now := c.now()
	readings := make([]*entities.StagingReading, 0, len(items))
	for _, it := range items {
		if r := readingFromItem(it, now); r != nil {
			readings = append(readings, r)
		}
	}
	return readings, nil
}

func readingFromItem(it item, now time.Time) *entities.StagingReading {
	hpid := it["hpid"]
	if hpid == "" {
		return nil
	}
	observedAt, _ := utils.ParseObservedAt(it.first("hvidate", "hvdate"), now)

	pair := func(avail, total string) entities.BedCount {
		return entities.BedCount{Available: utils.SafeInt(it[avail]), Total: utils.SafeInt(it[total])}
	}

	return &entities.StagingReading{
		HPID:             hpid,
		ObservedAt:       observedAt,
		General:          pair("hvec", "hvs01"),
		Child:            pair("hv28", "hvs02"),
		NegativePressure: pair("hv29", "hvs03"),
		IsolationGeneral: pair("hv30", "hvs04"),
		IsolationCohort:  pair("hv27", "hvs59"),
		DeliveryFlag:     utils.StringPtr(it["hv42"]),
		DeliveryTotal:    utils.SafeInt(it["hvs26"]),
		CTFlag:           utils.StringPtr(it["hvctayn"]),
		MRIFlag:          utils.StringPtr(it["hvmriayn"]),
		AngioFlag:        utils.StringPtr(it["hvangioayn"]),
		VentilatorFlag:   utils.StringPtr(it["hvventiayn"]),
	}
}

// FetchBasicInfo returns the facility-level facts of one ER. An empty result
// yields a BasicInfo with every hint unknown.
func (c *Client) FetchBasicInfo(ctx context.Context, hpid string) (*entities.BasicInfo, error) {
	items, err := c.get(ctx, pathBasicInfo, map[string]string{
		"HPID":      hpid,
		"pageNo":    "1",
		"numOfRows": "1",
	})
	if err != nil {
		return nil, err
	}

	info := &entities.BasicInfo{HPID: hpid}
	if len(items) == 0 {
		return info, nil
	}
	info.ObstetricFlag = utils.YNToBool(items[0].first("dutyObstYn", "hperyn", "dutyHayn"))
	return info, nil
}

// FetchMessages returns the advisory messages of one ER. Items missing text,
// time or hpid, or with an unparseable time, are dropped.
func (c *Client) FetchMessages(ctx context.Context, hpid string) ([]*entities.Message, error) {
	items, err := c.get(ctx, pathMessages, map[string]string{
		"HPID":      hpid,
		"pageNo":    "1",
		"numOfRows": "50",
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]*entities.Message, 0, len(items))
	for _, it := range items {
		text := it["symBlkMsg"]
		raw := it.first("symBlkSttDtm", "symBlkEndDtm")
		id := it["hpid"]
		if text == "" || raw == "" || id == "" {
			continue
		}
		at, err := time.ParseInLocation(utils.ObservedAtLayout, raw, utils.KST)
		if err != nil {
			continue
		}
		msgs = append(msgs, &entities.Message{
			HPID:        id,
			Text:        text,
			MessageType: it["symBlkMsgTyp"],
			MessageTime: at,
		})
	}
	return msgs, nil
}
