package auth

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-auth-service/pipeline"
)

var (
	_ gocmd.Commander[RegisterUserMessage]            = (*RegisterUserHandler)(nil)
	_ gocmd.Commander[LoginMessage]                   = (*LoginHandler)(nil)
	_ gocmd.Commander[LogoutMessage]                  = (*LogoutHandler)(nil)
	_ gocmd.Commander[InitializePasswordResetMessage] = (*InitializePasswordResetHandler)(nil)
	_ gocmd.Commander[FinalizePasswordResetMessage]   = (*FinalizePasswordResetHandler)(nil)
	_ gocmd.Commander[AccountVerificationMessage]     = (*AccountVerificationHandler)(nil)
	_ gocmd.Commander[ValidateEmailMessage]           = (*ValidateEmailHandler)(nil)
	_ gocmd.Querier[CurrentUserMessage, *User]        = (*CurrentUserQuery)(nil)
	_ gocmd.Querier[FetchUserMessage, *User]          = (*FetchUserQuery)(nil)

	_ Caller = (*pipeline.Dispatcher)(nil)
)
