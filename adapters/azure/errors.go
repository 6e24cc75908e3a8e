package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// shortError condenses an Azure response error to "status (code)" for log lines.
func shortError(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return fmt.Sprintf("%d %s (%s)", respErr.StatusCode, http.StatusText(respErr.StatusCode), respErr.ErrorCode)
	}
	return err.Error()
}

// isNotFound reports whether err is an Azure 404.
func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
