package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/split-ledger/internal/cache"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// GroupInput is the body of a new group.
type GroupInput struct {
	Name   string
	Icon   string
	Banner string
	Tags   []string
}

// GroupPatch lists the group fields to change. The author cannot be changed.
type GroupPatch struct {
	Name   *string
	Icon   *string
	Banner *string
	Tags   *[]string
}

// GetGroupByID returns the group with its author, or nil when it does not exist.
// The author is read through the user cache so profile changes show up at once.
// Tags and Author are shared and must not be modified.
func (s *Service) GetGroupByID(ctx context.Context, groupID string) (result *models.Group, err error) {
	ctx, span := s.start(ctx, "GetGroupByID", attribute.String("group.id", groupID))
	defer func() { s.end(ctx, span, "GetGroupByID", err) }()

	row, err := cache.Fetch(ctx, s.cache, cache.GroupKey(groupID), func(ctx context.Context) (*models.Group, error) {
		g, err := s.store.FindGroup(ctx, groupID)
		if err != nil || g == nil {
			return nil, storeErr(err)
		}
		g.Author = nil
		return g, nil
	})
	if err != nil || row == nil {
		return nil, err
	}
	return s.withAuthor(ctx, *row)
}

// GetGroupsForUser lists the groups userID is a joined member of.
func (s *Service) GetGroupsForUser(ctx context.Context, userID string) (result []models.Group, err error) {
	ctx, span := s.start(ctx, "GetGroupsForUser")
	defer func() { s.end(ctx, span, "GetGroupsForUser", err) }()

	rows, err := cache.Fetch(ctx, s.cache, cache.UserGroupsKey(userID), func(ctx context.Context) ([]models.Group, error) {
		groups, err := s.store.GroupsForUser(ctx, userID)
		if err != nil {
			return nil, storeErr(err)
		}
		for i := range groups {
			groups[i].Author = nil
		}
		return groups, nil
	})
	if err != nil {
		return nil, err
	}

	result = make([]models.Group, 0, len(rows))
	for _, g := range rows {
		resolved, err := s.withAuthor(ctx, g)
		if err != nil {
			return nil, err
		}
		result = append(result, *resolved)
	}
	return result, nil
}

// withAuthor returns a copy of g with its author read through the user cache.
func (s *Service) withAuthor(ctx context.Context, g models.Group) (*models.Group, error) {
	author, err := s.GetUserByID(ctx, g.AuthorID)
	if err != nil {
		return nil, err
	}
	g.Author = author
	return &g, nil
}

// CreateGroup creates a group authored by requesterID, who becomes its owner.
func (s *Service) CreateGroup(ctx context.Context, requesterID string, in GroupInput) (result *models.Group, err error) {
	ctx, span := s.start(ctx, "CreateGroup")
	defer func() { s.end(ctx, span, "CreateGroup", err) }()

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalidInput("group name is required")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	err = s.inTx(ctx, groupLockKey(id), func(ctx context.Context, tx Tx) error {
		author, err := tx.FindUser(ctx, requesterID)
		if err != nil {
			return storeErr(err)
		}
		if author == nil {
			return notFound("user %s", requesterID)
		}

		group := &models.Group{
			ID:       id,
			Name:     in.Name,
			Icon:     in.Icon,
			Banner:   in.Banner,
			Tags:     tags,
			AuthorID: requesterID,
		}
		if err := tx.CreateGroup(ctx, group); err != nil {
			return storeErr(err)
		}
		owner := &models.Member{
			ID:      uuid.NewString(),
			UserID:  requesterID,
			GroupID: id,
			Status:  models.MemberStatusJoined,
			Role:    models.MemberRoleOwner,
		}
		if err := tx.CreateMember(ctx, owner); err != nil {
			return storeErr(err)
		}

		loaded, err := tx.FindGroup(ctx, id)
		result = loaded
		return storeErr(err)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.GroupKey(id), cache.UserGroupsKey(requesterID))
	s.committed(ctx, "CreateGroup")
	logger.Log.Info().
		Str("group_id", id).
		Str("user", logger.HashUserID(requesterID)).
		Msg("Group created")
	return result, nil
}

// UpdateGroup changes a group's details. The author and joined owners or admins may do so.
func (s *Service) UpdateGroup(
	ctx context.Context,
	groupID, requesterID string,
	patch GroupPatch,
) (result *models.Group, err error) {
	ctx, span := s.start(ctx, "UpdateGroup", attribute.String("group.id", groupID))
	defer func() { s.end(ctx, span, "UpdateGroup", err) }()

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalidInput("group name cannot be empty")
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		patch.Tags = &tags
	}

	var memberIDs []string
	err = s.inTx(ctx, groupLockKey(groupID), func(ctx context.Context, tx Tx) error {
		existing, members, err := loadGroupForAdmin(ctx, tx, groupID, requesterID)
		if err != nil {
			return err
		}

		g := *existing
		if patch.Name != nil {
			g.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Icon != nil {
			g.Icon = *patch.Icon
		}
		if patch.Banner != nil {
			g.Banner = *patch.Banner
		}
		if patch.Tags != nil {
			g.Tags = *patch.Tags
		}
		if err := tx.UpdateGroup(ctx, &g); err != nil {
			return storeErr(err)
		}

		for _, m := range members {
			memberIDs = append(memberIDs, m.UserID)
		}
		result = &g
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := []cache.Key{cache.GroupKey(groupID)}
	for _, id := range memberIDs {
		keys = append(keys, cache.UserGroupsKey(id))
	}
	s.cache.Invalidate(keys...)
	s.committed(ctx, "UpdateGroup")
	logger.Log.Info().
		Str("group_id", groupID).
		Str("user", logger.HashUserID(requesterID)).
		Msg("Group updated")
	return result, nil
}

// AddMember adds userID to a group as a joined member with role. An empty role means MEMBER.
func (s *Service) AddMember(
	ctx context.Context,
	groupID, requesterID, userID string,
	role models.MemberRole,
) (result *models.Member, err error) {
	ctx, span := s.start(ctx, "AddMember", attribute.String("group.id", groupID))
	defer func() { s.end(ctx, span, "AddMember", err) }()

	if role == "" {
		role = models.MemberRoleMember
	}
	if !role.IsValid() {
		return nil, invalidInput("unknown member role %q", role)
	}

	err = s.inTx(ctx, groupLockKey(groupID), func(ctx context.Context, tx Tx) error {
		if _, _, err := loadGroupForAdmin(ctx, tx, groupID, requesterID); err != nil {
			return err
		}
		user, err := tx.FindUser(ctx, userID)
		if err != nil {
			return storeErr(err)
		}
		if user == nil {
			return notFound("user %s", userID)
		}

		m := &models.Member{
			ID:      uuid.NewString(),
			UserID:  userID,
			User:    user,
			GroupID: groupID,
			Status:  models.MemberStatusJoined,
			Role:    role,
		}
		if err := tx.CreateMember(ctx, m); err != nil {
			return storeErr(err)
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.UserGroupsKey(userID))
	s.committed(ctx, "AddMember")
	logger.Log.Info().
		Str("group_id", groupID).
		Str("user", logger.HashUserID(userID)).
		Str("role", string(role)).
		Msg("Member added")
	return result, nil
}

// loadGroupForAdmin loads a group and its members, requiring requesterID to be its
// author or a joined owner or admin.
func loadGroupForAdmin(ctx context.Context, r Reader, groupID, requesterID string) (*models.Group, []models.Member, error) {
	group, err := r.FindGroup(ctx, groupID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if group == nil {
		return nil, nil, notFound("group %s", groupID)
	}
	members, err := r.MembersByGroup(ctx, groupID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if group.AuthorID == requesterID {
		return group, members, nil
	}
	for _, m := range members {
		if m.UserID == requesterID && m.IsActive() &&
			(m.Role == models.MemberRoleOwner || m.Role == models.MemberRoleAdmin) {
			return group, members, nil
		}
	}
	return nil, nil, unauthorized("cannot manage group %s", groupID)
}
