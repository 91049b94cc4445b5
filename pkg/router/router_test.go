package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MapError(t *testing.T) {
	router := New()

	tcs := []struct {
		err error
		exp JsonError
	}{
		{
			err: errors.New("random error"),
			exp: router.defaultError,
		},
		{
			err: JsonError{
				Code: 400,
				Err:  "API Error",
			},
			exp: JsonError{
				Code: 400,
				Err:  "API Error",
			},
		},
	}

	for _, tc := range tcs {
		got := router.mapError(tc.err)
		assert.Equal(t, tc.exp, got)
	}
}

func Test_HandleWithErr(t *testing.T) {
	router := New()
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) error {
		w.Write([]byte("ok"))
		return nil
	})
	router.Get("/bad", func(w http.ResponseWriter, r *http.Request) error {
		return NewJsonError(http.StatusBadRequest, "bad input")
	})
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("internal detail")
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res, err = http.Get(srv.URL + "/bad")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()

	res, err = http.Get(srv.URL + "/boom")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	res.Body.Close()
}
