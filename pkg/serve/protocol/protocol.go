// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the server side of the git smart HTTP wire
// format: refs advertisement, receive-pack request parsing and the pkt-line
// status report.
package protocol

import "fmt"

const (
	UploadPack  = "git-upload-pack"
	ReceivePack = "git-receive-pack"

	uploadPackCapFmt  = "multi_ack thin-pack side-band side-band-64k ofs-delta shallow deepen-since deepen-not deepen-relative no-progress include-tag multi_ack_detailed symref=HEAD:%s agent=%s"
	receivePackCapFmt = "report-status report-status-v2 delete-refs quiet atomic ofs-delta push-options object-format=sha1 agent=%s"
)

// IsSmartService reports whether svc names a smart HTTP service this server
// speaks.
func IsSmartService(svc string) bool {
	return svc == UploadPack || svc == ReceivePack
}

// AdvertisementType is the Content-Type of an info/refs response.
func AdvertisementType(svc string) string {
	return fmt.Sprintf("application/x-%s-advertisement", svc)
}

// ResultType is the Content-Type of an upload-pack/receive-pack response.
func ResultType(svc string) string {
	return fmt.Sprintf("application/x-%s-result", svc)
}

func capabilities(svc, symrefTarget, agent string) string {
	if svc == ReceivePack {
		return fmt.Sprintf(receivePackCapFmt, agent)
	}
	return fmt.Sprintf(uploadPackCapFmt, symrefTarget, agent)
}
