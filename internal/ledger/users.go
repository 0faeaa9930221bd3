package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/split-ledger/internal/cache"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

const (
	minSearchQueryLength = 3
	searchLimit          = 20
)

// UserPatch lists the profile fields to change. Nil fields are left as they are;
// an empty Phone removes the phone number.
type UserPatch struct {
	Name   *string
	Phone  *string
	Avatar *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return invalidInput("%q is not an email address", email)
	}
	return nil
}

// GetUserByID returns the user, or nil when it does not exist.
// The result may be shared with other callers and must not be modified.
func (s *Service) GetUserByID(ctx context.Context, userID string) (result *models.User, err error) {
	ctx, span := s.start(ctx, "GetUserByID")
	defer func() { s.end(ctx, span, "GetUserByID", err) }()

	return cache.Fetch(ctx, s.cache, cache.UserKey(userID), func(ctx context.Context) (*models.User, error) {
		u, err := s.store.FindUser(ctx, userID)
		return u, storeErr(err)
	})
}

// FindOrCreateUser returns the user registered under u.Email, creating a JOINED user
// from u when there is none. The boolean reports whether the user was created.
func (s *Service) FindOrCreateUser(ctx context.Context, u models.User) (result *models.User, created bool, err error) {
	ctx, span := s.start(ctx, "FindOrCreateUser")
	defer func() { s.end(ctx, span, "FindOrCreateUser", err) }()

	u.Email = normalizeEmail(u.Email)
	if err := checkEmail(u.Email); err != nil {
		return nil, false, err
	}

	err = s.inTx(ctx, emailLockKey(u.Email), func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindUserByEmail(ctx, u.Email)
		if err != nil {
			return storeErr(err)
		}
		if existing != nil {
			result = existing
			return nil
		}

		u.ID = uuid.NewString()
		u.Status = models.UserStatusJoined
		u.InvitedBy = nil
		if err := tx.CreateUser(ctx, &u); err != nil {
			return storeErr(err)
		}
		result, created = &u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.cache.Invalidate(cache.UserKey(result.ID))
		s.committed(ctx, "CreateUser")
		logger.Log.Info().
			Str("user", logger.HashUserID(result.ID)).
			Str("email", logger.SanitizeEmail(result.Email)).
			Msg("User created")
	}
	return result, created, nil
}

// UpdateUserProfile changes the requester's own profile.
func (s *Service) UpdateUserProfile(
	ctx context.Context,
	userID, requesterID string,
	patch UserPatch,
) (result *models.User, err error) {
	ctx, span := s.start(ctx, "UpdateUserProfile")
	defer func() { s.end(ctx, span, "UpdateUserProfile", err) }()

	if userID != requesterID {
		return nil, unauthorized("cannot change another user's profile")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalidInput("name cannot be empty")
	}

	err = s.inTx(ctx, userLockKey(userID), func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindUser(ctx, userID)
		if err != nil {
			return storeErr(err)
		}
		if existing == nil {
			return notFound("user %s", userID)
		}

		u := *existing
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Avatar != nil {
			u.Avatar = *patch.Avatar
		}
		if patch.Phone != nil {
			if phone := strings.TrimSpace(*patch.Phone); phone == "" {
				u.Phone = nil
			} else {
				u.Phone = &phone
			}
		}
		if err := tx.UpdateUser(ctx, &u); err != nil {
			return storeErr(err)
		}
		result = &u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.UserKey(userID))
	s.committed(ctx, "UpdateUserProfile")
	logger.Log.Info().Str("user", logger.HashUserID(userID)).Msg("User profile updated")
	return result, nil
}

// ActivateUser marks an invited user as joined. It is called by the identity
// layer after the user's first successful sign-in and is a no-op for joined users.
func (s *Service) ActivateUser(ctx context.Context, userID string) (result *models.User, err error) {
	ctx, span := s.start(ctx, "ActivateUser")
	defer func() { s.end(ctx, span, "ActivateUser", err) }()

	activated := false
	err = s.inTx(ctx, userLockKey(userID), func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindUser(ctx, userID)
		if err != nil {
			return storeErr(err)
		}
		if existing == nil {
			return notFound("user %s", userID)
		}
		if existing.Status == models.UserStatusJoined {
			result = existing
			return nil
		}

		u := *existing
		u.Status = models.UserStatusJoined
		if err := tx.UpdateUser(ctx, &u); err != nil {
			return storeErr(err)
		}
		result, activated = &u, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		s.cache.Invalidate(cache.UserKey(userID))
		s.committed(ctx, "ActivateUser")
		logger.Log.Info().Str("user", logger.HashUserID(userID)).Msg("Invited user joined")
	}
	return result, nil
}

// SearchUsersByEmail finds users whose email contains query, ignoring case.
func (s *Service) SearchUsersByEmail(ctx context.Context, query string) (result []models.User, err error) {
	ctx, span := s.start(ctx, "SearchUsersByEmail")
	defer func() { s.end(ctx, span, "SearchUsersByEmail", err) }()

	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchQueryLength {
		return nil, invalidInput("search query must be at least %d characters", minSearchQueryLength)
	}
	users, err := s.store.SearchUsersByEmail(ctx, query, searchLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// InviteUser registers email as an INVITED user on behalf of inviterID and sends
// the invitation in the background.
func (s *Service) InviteUser(ctx context.Context, inviterID, email string) (result *models.User, err error) {
	ctx, span := s.start(ctx, "InviteUser")
	defer func() { s.end(ctx, span, "InviteUser", err) }()

	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}

	var inviter *models.User
	err = s.inTx(ctx, emailLockKey(email), func(ctx context.Context, tx Tx) error {
		var err error
		inviter, err = tx.FindUser(ctx, inviterID)
		if err != nil {
			return storeErr(err)
		}
		if inviter == nil {
			return notFound("user %s", inviterID)
		}
		if normalizeEmail(inviter.Email) == email {
			return invalidInput("cannot invite yourself")
		}

		existing, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return storeErr(err)
		}
		if existing != nil {
			return conflict("user %s is already registered", logger.SanitizeEmail(email))
		}

		invitedBy := inviter.ID
		name, _, _ := strings.Cut(email, "@")
		u := &models.User{
			ID:        uuid.NewString(),
			Name:      name,
			Email:     email,
			Status:    models.UserStatusInvited,
			InvitedBy: &invitedBy,
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return storeErr(err)
		}
		result = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.UserKey(result.ID))
	s.committed(ctx, "InviteUser")
	logger.Log.Info().
		Str("inviter", logger.HashUserID(inviterID)).
		Str("email", logger.SanitizeEmail(email)).
		Msg("User invited")

	s.notify(ctx, "invite", func(ctx context.Context, n Notifier) error {
		return n.SendInvite(ctx, email, inviter)
	})
	return result, nil
}
