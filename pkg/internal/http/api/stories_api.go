package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/stories"
	"github.com/gofiber/fiber/v2"
)

func listStories(c *fiber.Ctx) error {
	feed, err := deps.Stories.Feed(c.UserContext())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(feed)
}

func publishStory(c *fiber.Ctx) error {
	var data stories.Upload

	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	story, err := deps.Stories.Publish(c.UserContext(), data)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(story)
}

// loadStory reads the story addressed by the route.
func loadStory(c *fiber.Ctx) (string, models.Story, error) {
	author, storyId := c.Params("author"), c.Params("story")
	snapshot, err := deps.Tree.Get(c.UserContext(), models.StoryPath(author, storyId))
	if err != nil {
		return author, models.Story{}, toHttpError(err)
	} else if !snapshot.Exists {
		return author, models.Story{}, fiber.NewError(fiber.StatusNotFound, "story not found")
	}

	var story models.Story
	if err := snapshot.Decode(&story); err != nil {
		return author, story, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if len(story.ID) == 0 {
		story.ID = storyId
	}
	return author, story, nil
}

func viewStory(c *fiber.Ctx) error {
	author, story, err := loadStory(c)
	if err != nil {
		return err
	}
	marked, err := deps.Stories.MarkViewed(c.UserContext(), author, story)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"marked": marked})
}

func listStoryViewers(c *fiber.Ctx) error {
	author, story, err := loadStory(c)
	if err != nil {
		return err
	} else if author != deps.Me {
		return fiber.NewError(fiber.StatusForbidden, "only the author can see the viewers")
	}
	return c.JSON(deps.Stories.Viewers(c.UserContext(), story))
}

func deleteStory(c *fiber.Ctx) error {
	author, story, err := loadStory(c)
	if err != nil {
		return err
	}
	if err := deps.Stories.Delete(c.UserContext(), author, story); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}
