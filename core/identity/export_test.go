package identity

import "time"

func (pr *PasswordResets) SetNowFunc(f func() time.Time) { pr.nowFunc = f }
