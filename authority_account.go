package draftauth

import (
	"context"
	"strconv"
)

// AccountStatusWriter is the optional mutation surface of an account
// store. account.RedisStore implements it. Stores without it reject the
// status-change operations with [ErrStoreReadOnly].
type AccountStatusWriter interface {
	SetDeactivated(ctx context.Context, accountID string, deactivated bool) error
	SetRole(ctx context.Context, accountID string, role Role) error
}

// SetAccountDeactivated flips an account's deactivation flag through the
// configured store and audits the change. The next request carrying any
// outstanding credential of the account observes the new value.
func (a *Authority) SetAccountDeactivated(ctx context.Context, accountID string, deactivated bool) error {
	writer, err := a.statusWriter()
	if err != nil {
		return err
	}

	err = writer.SetDeactivated(ctx, accountID, deactivated)
	if err == nil {
		a.metricInc(MetricAccountStatusChanged)
	}
	a.emitAudit(ctx, auditEventAccountStatusChange, err == nil, accountID, err, func() map[string]string {
		return map[string]string{
			"change": "deactivated",
			"value":  strconv.FormatBool(deactivated),
		}
	})
	return err
}

// SetAccountRole changes an account's role through the configured store
// and audits the change. Visible on the account's very next request.
func (a *Authority) SetAccountRole(ctx context.Context, accountID string, role Role) error {
	writer, err := a.statusWriter()
	if err != nil {
		return err
	}

	err = writer.SetRole(ctx, accountID, role)
	if err == nil {
		a.metricInc(MetricAccountStatusChanged)
	}
	a.emitAudit(ctx, auditEventAccountStatusChange, err == nil, accountID, err, func() map[string]string {
		return map[string]string{
			"change": "role",
			"value":  role.String(),
		}
	})
	return err
}

func (a *Authority) statusWriter() (AccountStatusWriter, error) {
	if a == nil || a.store == nil {
		return nil, ErrAuthorityNotReady
	}
	writer, ok := a.store.(AccountStatusWriter)
	if !ok {
		return nil, ErrStoreReadOnly
	}
	return writer, nil
}
