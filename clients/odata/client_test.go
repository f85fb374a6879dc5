package odata_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/clients/odata"
	"github.com/kava-labs/odata-batch-proxy/clients/odata/odatatest"
)

func newTestClient(t *testing.T, backend *odatatest.Backend) *odata.Client {
	rootURL, err := url.Parse(backend.URL + "/service.svc/")
	require.NoError(t, err)

	client, err := odata.NewClient(odata.ClientConfig{
		ServiceRootURL: rootURL,
		Header:         http.Header{"Dataserviceversion": []string{"3.0"}},
	})
	require.NoError(t, err)

	return client
}

func TestUnitTestNewClientRequiresAbsoluteRoot(t *testing.T) {
	_, err := odata.NewClient(odata.ClientConfig{})
	require.Error(t, err)

	relative, err := url.Parse("service.svc")
	require.NoError(t, err)
	_, err = odata.NewClient(odata.ClientConfig{ServiceRootURL: relative})
	require.Error(t, err)

	root, err := url.Parse("http://localhost:8080/service.svc/")
	require.NoError(t, err)
	client, err := odata.NewClient(odata.ClientConfig{ServiceRootURL: root, BatchPath: "custom"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/service.svc/custom", client.BatchURL())

	client, err = odata.NewClient(odata.ClientConfig{ServiceRootURL: root})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/service.svc/$batch", client.BatchURL())
}

func TestUnitTestExecuteBatchRoundTrip(t *testing.T) {
	backend := odatatest.NewBackend(odatatest.OK)
	defer backend.Close()

	client := newTestClient(t, backend)

	demux, err := client.ExecuteBatch(context.Background(), func(w *batch.Writer) error {
		retrieve, err := w.OpenRetrieve()
		if err != nil {
			return err
		}
		if err := retrieve.SetRequest(batch.NewOperation(http.MethodGet, "Products(1)", nil, nil)); err != nil {
			return err
		}

		changeset, err := w.OpenChangeset()
		if err != nil {
			return err
		}
		_, err = changeset.AddRequest(batch.NewOperation(http.MethodPost, "Products", nil, []byte(`{"Name":"x"}`)))
		return err
	})
	require.NoError(t, err)
	defer demux.Close()

	require.Equal(t, http.StatusAccepted, demux.StatusCode())

	item, err := demux.Next()
	require.NoError(t, err)
	require.Equal(t, batch.KindRetrieve, item.Kind())

	response, err := item.Next()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"method":"GET","url":"Products(1)"}`, string(body))

	item, err = demux.Next()
	require.NoError(t, err)
	require.Equal(t, batch.KindChangeset, item.Kind())

	response, err = item.Next()
	require.NoError(t, err)
	require.Equal(t, "1", response.ContentID)
	require.False(t, item.HasNext())

	require.False(t, demux.HasNext())
	require.NoError(t, demux.Close())

	operations := backend.Operations()
	require.Len(t, operations, 2)
	require.Empty(t, operations[0].Header.Get("Dataserviceversion"), "default headers are only sent on the envelope")
	require.Equal(t, `{"Name":"x"}`, string(operations[1].Body))
	require.Equal(t, 0, operations[1].Changeset)
}

func TestUnitTestExecuteBatchRejectedBatch(t *testing.T) {
	backend := odatatest.NewBackend(odatatest.OK)
	defer backend.Close()
	backend.FailBatches(http.StatusInternalServerError)

	client := newTestClient(t, backend)

	_, err := client.ExecuteBatch(context.Background(), func(w *batch.Writer) error {
		retrieve, err := w.OpenRetrieve()
		if err != nil {
			return err
		}
		return retrieve.SetRequest(batch.NewOperation(http.MethodGet, "Products", nil, nil))
	})
	require.Error(t, err)

	var requestErr *odata.RequestError
	require.ErrorAs(t, err, &requestErr)
	require.Equal(t, http.StatusInternalServerError, requestErr.StatusCode)
	require.Equal(t, client.BatchURL(), requestErr.URL)
	require.Equal(t, 1, backend.BatchCount())
}

func TestUnitTestExecuteBatchBuildError(t *testing.T) {
	backend := odatatest.NewBackend(odatatest.OK)
	defer backend.Close()

	client := newTestClient(t, backend)
	buildErr := errors.New("no operations to send")

	_, err := client.ExecuteBatch(context.Background(), func(w *batch.Writer) error {
		return buildErr
	})
	require.ErrorIs(t, err, buildErr)
}

func TestUnitTestExecuteBatchUnreachableBackend(t *testing.T) {
	root, err := url.Parse("http://127.0.0.1:1/service.svc/")
	require.NoError(t, err)

	client, err := odata.NewClient(odata.ClientConfig{ServiceRootURL: root})
	require.NoError(t, err)

	_, err = client.ExecuteBatch(context.Background(), func(w *batch.Writer) error {
		retrieve, err := w.OpenRetrieve()
		if err != nil {
			return err
		}
		return retrieve.SetRequest(batch.NewOperation(http.MethodGet, "Products", nil, nil))
	})

	var requestErr *odata.RequestError
	require.ErrorAs(t, err, &requestErr)
	require.Zero(t, requestErr.StatusCode)
}
