package erapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/pkg/config"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const bedsXML = `<?xml version="1.0" encoding="UTF-8"?>
<response>
  <header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header>
  <body>
    <items>
      <item>
        <hpid>A1100010</hpid>
        <hvidate>20240305143000</hvidate>
        <hvec>3</hvec><hvs01>12</hvs01>
        <hv28>0</hv28><hvs02>4</hvs02>
        <hv42>Y</hv42><hvs26>2</hvs26>
        <hv29></hv29><hvs03>1</hvs03>
        <hvctayn>Y</hvctayn><hvmriayn>N</hvmriayn>
      </item>
      <item>
        <hvec>1</hvec>
      </item>
      <item>
        <hpid>A1100011</hpid>
        <hvdate>bad</hvdate>
        <hvec>x</hvec>
      </item>
    </items>
    <totalCount>3</totalCount>
  </body>
</response>`

const singleBasicXML = `<response>
  <header><resultCode>00</resultCode></header>
  <body><items><item><hpid>A1</hpid><dutyObstYn></dutyObstYn><hperyn>Y</hperyn><dutyHayn>N</dutyHayn></item></items></body>
</response>`

const messagesXML = `<response>
  <header><resultCode>00</resultCode></header>
  <body><items>
    <item><hpid>A1</hpid><symBlkMsg>CT 장비 점검</symBlkMsg><symBlkMsgTyp>응급</symBlkMsgTyp><symBlkSttDtm>20240305101500</symBlkSttDtm></item>
    <item><hpid>A1</hpid><symBlkMsg>소아 진료 불가</symBlkMsg><symBlkEndDtm>20240306090000</symBlkEndDtm></item>
    <item><hpid>A1</hpid><symBlkMsg>no time</symBlkMsg></item>
    <item><hpid>A1</hpid><symBlkMsg>bad time</symBlkMsg><symBlkSttDtm>yesterday</symBlkSttDtm></item>
  </items></body>
</response>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(&config.ERAPIConfig{
		BaseURL:    srv.URL + "/",
		ServiceKey: "secret",
		Timeout:    2 * time.Second,
		RetryCount: 1,
	}, nil)
	c.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchRegion_ParsesItems(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+pathRealtimeBeds, r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"serviceKey": q.Get("serviceKey"),
			"STAGE1":     q.Get("STAGE1"),
			"STAGE2":     q.Get("STAGE2"),
			"numOfRows":  q.Get("numOfRows"),
		}
		w.Write([]byte(bedsXML))
	})

	readings, err := c.FetchRegion(context.Background(), entities.RegionPair{Sido: "서울특별시", Sigungu: "종로구"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"serviceKey": "secret", "STAGE1": "서울특별시", "STAGE2": "종로구", "numOfRows": "200"}, gotQuery)

	require.Len(t, readings, 2)
	first := readings[0]
	assert.Equal(t, "A1100010", first.HPID)
	assert.True(t, first.ObservedAt.Equal(time.Date(2024, 3, 5, 5, 30, 0, 0, time.UTC)))
	assert.Equal(t, 3, *first.General.Available)
	assert.Equal(t, 12, *first.General.Total)
	assert.Equal(t, 0, *first.Child.Available)
	assert.Equal(t, "Y", *first.DeliveryFlag)
	assert.Equal(t, 2, *first.DeliveryTotal)
	assert.Nil(t, first.NegativePressure.Available)
	assert.Equal(t, 1, *first.NegativePressure.Total)
	assert.Equal(t, "N", *first.MRIFlag)
	assert.Nil(t, first.AngioFlag)

	second := readings[1]
	assert.Equal(t, "A1100011", second.HPID)
	assert.True(t, second.ObservedAt.Equal(c.now()))
	assert.Nil(t, second.General.Available)
}

func TestFetchRegion_EmptyBodyIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items/></body></response>`))
	})

	readings, err := c.FetchRegion(context.Background(), entities.RegionPair{Sido: "a", Sigungu: "b"})
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestFetchRegion_ResultCodeIsExternalError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><header><resultCode>30</resultCode><resultMsg>SERVICE KEY IS NOT REGISTERED</resultMsg></header></response>`))
	})

	_, err := c.FetchRegion(context.Background(), entities.RegionPair{Sido: "a", Sigungu: "b"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "SERVICE KEY IS NOT REGISTERED")
}

func TestFetchRegion_MalformedXML(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<OpenAPI_ServiceResponse><cmmMsgHeader/></OpenAPI_ServiceResponse>`))
	})

	_, err := c.FetchRegion(context.Background(), entities.RegionPair{Sido: "a", Sigungu: "b"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(singleBasicXML))
	})

	info, err := c.FetchBasicInfo(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.NotNil(t, info.ObstetricFlag)
	assert.True(t, *info.ObstetricFlag)
}

func TestGet_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.FetchBasicInfo(context.Background(), "A1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		_, err := c.FetchBasicInfo(context.Background(), "A1")
		require.Error(t, err)
	}
	require.Equal(t, int32(5), atomic.LoadInt32(&calls))

	_, err := c.FetchBasicInfo(context.Background(), "A1")
	require.Error(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestFetchBasicInfo_NoItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "A9", r.URL.Query().Get("HPID"))
		w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items></items></body></response>`))
	})

	info, err := c.FetchBasicInfo(context.Background(), "A9")
	require.NoError(t, err)
	assert.Equal(t, "A9", info.HPID)
	assert.Nil(t, info.ObstetricFlag)
}

func TestFetchMessages_DropsIncompleteItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+pathMessages, r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("numOfRows"))
		w.Write([]byte(messagesXML))
	})

	msgs, err := c.FetchMessages(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "CT 장비 점검", msgs[0].Text)
	assert.Equal(t, "응급", msgs[0].MessageType)
	assert.True(t, msgs[0].MessageTime.Equal(time.Date(2024, 3, 5, 1, 15, 0, 0, time.UTC)))
	assert.Equal(t, "소아 진료 불가", msgs[1].Text)
	assert.Equal(t, "", msgs[1].MessageType)
}
