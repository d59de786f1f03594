package classifier

import "errors"

// ErrModelNotReady is returned when predicting without a loaded dataset
var ErrModelNotReady = errors.New("classifier: model not ready")
