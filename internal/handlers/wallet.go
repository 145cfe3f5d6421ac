package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/handlers/userctx"
	"github.com/nkiryanov/betplatform/internal/logger"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,money"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

func handleOpenAccount(walletService WalletService, l logger.Logger) http.Handler {
	type response struct {
		ID      uuid.UUID `json:"id"`
		Balance string    `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		account, err := walletService.OpenAccount(r.Context(), user.ID)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{ID: account.ID, Balance: account.Balance.StringFixed(2)}, http.StatusCreated)
	})
}

func handleDeposit(walletService WalletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		deposit, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		account, err := walletService.Deposit(r.Context(), user.ID, deposit.Amount)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSON(w, balanceResponse{Balance: account.Balance.StringFixed(2)})
	})
}

func handleWithdraw(walletService WalletService, l logger.Logger) http.Handler {
	type response struct {
		Withdrawn    string `json:"withdrawn"`
		Tax          string `json:"tax"`
		TotalDebited string `json:"total_debited"`
		Balance      string `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		withdraw, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		withdrawal, err := walletService.Withdraw(r.Context(), user.ID, withdraw.Amount)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSON(w, response{
			Withdrawn:    withdrawal.Amount.StringFixed(2),
			Tax:          withdrawal.Tax.StringFixed(2),
			TotalDebited: withdrawal.TotalDebited.StringFixed(2),
			Balance:      withdrawal.Balance.StringFixed(2),
		})
	})
}

func handleBalance(walletService WalletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := walletService.Balance(r.Context(), user.ID)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSON(w, balanceResponse{Balance: balance.StringFixed(2)})
	})
}

// Statement of the account, filtered by repeated 'type' query parameter
func handleListTransactions(walletService WalletService, l logger.Logger) http.Handler {
	type transaction struct {
		ID          uuid.UUID  `json:"id"`
		Type        string     `json:"type"`
		Amount      string     `json:"amount"`
		Tax         string     `json:"tax"`
		Debited     string     `json:"debited"`
		Reference   *uuid.UUID `json:"reference,omitempty"`
		ProcessedAt time.Time  `json:"processed_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		tr, err := walletService.ListTransactions(r.Context(), user.ID, r.URL.Query()["type"])
		if err != nil {
			serviceError(w, l, err)
			return
		}

		transactions := make([]transaction, 0, len(tr))
		for _, t := range tr {
			transactions = append(transactions, transaction{
				ID:          t.ID,
				Type:        t.Type,
				Amount:      t.Amount.StringFixed(2),
				Tax:         t.Tax.StringFixed(2),
				Debited:     t.Debited().StringFixed(2),
				Reference:   t.Reference,
				ProcessedAt: t.ProcessedAt,
			})
		}
		render.JSON(w, transactions)
	})
}
