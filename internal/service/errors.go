package service

import "errors"

var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateAccrual       = errors.New("accrual already recorded for this week")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrSelfTransfer           = errors.New("cannot transfer to self")
	ErrNotFound               = errors.New("not found")
	ErrPlanInactive           = errors.New("plan is not active")
	ErrBelowMinimum           = errors.New("amount below minimum")
	ErrPlanLocked             = errors.New("plan financial terms are locked")
	ErrInvalidReferralCode    = errors.New("invalid referral code")

	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrUnsupportedCurrency    = errors.New("unsupported currency")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrWalletExists           = errors.New("wallet already registered")
	ErrInvalidWeek            = errors.New("week number must be positive")
	ErrAccrualRunning         = errors.New("accrual for this week is already running")
)
