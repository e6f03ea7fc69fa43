package client

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/plotdata"
	"github.com/charlie0129/battcap/pkg/telemetry"
)

func (c *Client) GetSamples() ([]telemetry.Sample, error) {
	ret, err := c.Get("/samples")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get samples")
	}
	var samples []telemetry.Sample
	if err := json.Unmarshal([]byte(ret), &samples); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal samples")
	}
	return samples, nil
}

func (c *Client) GetLatestSample() (*telemetry.Sample, error) {
	ret, err := c.Get("/samples/latest")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get latest sample")
	}
	var sample telemetry.Sample
	if err := json.Unmarshal([]byte(ret), &sample); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal latest sample")
	}
	return &sample, nil
}

func (c *Client) GetPlotData() (*plotdata.Series, error) {
	ret, err := c.Get("/plotdata")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get plot data")
	}
	var s plotdata.Series
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal plot data")
	}
	return &s, nil
}

func (c *Client) GetCapacity() (*capacity.Result, error) {
	ret, err := c.Get("/capacity")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get capacity")
	}
	var res capacity.Result
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal capacity")
	}
	return &res, nil
}

// ClosePort asks the recorder to close its source and returns its answer.
func (c *Client) ClosePort() (string, error) {
	return c.Post("/close-port", "")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}
