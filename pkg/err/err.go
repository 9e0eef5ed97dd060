package errprocess

import (
	"chat_relay_service/pkg/logger"
	"errors"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}
