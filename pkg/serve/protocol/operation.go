// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package protocol

// Operation classifies what a request wants from a repository, read or
// write. Bearer tokens are scoped to one operation.
type Operation string

const (
	PSEUDO   Operation = "pseudo"
	DOWNLOAD Operation = "download"
	UPLOAD   Operation = "upload"
)

type ErrorCode struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorCode) Error() string {
	return e.Message
}
